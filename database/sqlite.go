package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/kentoooo/mellowq/model"
)

// maxInArgs keeps IN (...) lists well below SQLite's variable limit.
const maxInArgs = 500

type SQLiteStore struct {
	db *sql.DB
}

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func insertErr(code string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", code, ErrConflict)
	}
	return fmt.Errorf("%s: %w", code, err)
}

func lookupErr(code string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", code, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func (s *SQLiteStore) CreateSurvey(ctx context.Context, survey model.Survey) error {
	questionsJson, err := json.Marshal(survey.Questions)
	if err != nil {
		return fmt.Errorf("db.insert_survey.questions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO survey (id, admin_token, title, description, questions, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		survey.ID,
		survey.AdminToken,
		survey.Title,
		survey.Description,
		string(questionsJson),
		survey.CreatedAt.UTC(),
		nullTime(survey.ExpiresAt),
	)
	if err != nil {
		return insertErr("db.insert_survey", err)
	}
	return nil
}

const surveyColumns = `id, admin_token, title, description, questions, created_at, expires_at`

func scanSurvey(row scanner) (survey model.Survey, err error) {
	var questions string
	var expiresAt sql.NullTime
	err = row.Scan(
		&survey.ID, &survey.AdminToken, &survey.Title, &survey.Description,
		&questions, &survey.CreatedAt, &expiresAt,
	)
	if err != nil {
		return
	}
	survey.CreatedAt = survey.CreatedAt.UTC()
	survey.ExpiresAt = timePtr(expiresAt)
	err = json.Unmarshal([]byte(questions), &survey.Questions)
	return
}

func (s *SQLiteStore) SurveyByID(ctx context.Context, id string) (model.Survey, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM survey WHERE id = ?`, id)
	survey, err := scanSurvey(row)
	if err != nil {
		return survey, lookupErr("db.get_survey", err)
	}
	return survey, nil
}

func (s *SQLiteStore) SurveyByAdminToken(ctx context.Context, adminToken string) (model.Survey, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM survey WHERE admin_token = ?`, adminToken)
	survey, err := scanSurvey(row)
	if err != nil {
		return survey, lookupErr("db.get_survey_by_admin_token", err)
	}
	return survey, nil
}

func (s *SQLiteStore) CreateResponse(ctx context.Context, r *model.Response) error {
	answersJson, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("db.insert_response.answers: %w", err)
	}
	var subJson sql.NullString
	if r.PushSubscription != nil {
		b, err := json.Marshal(r.PushSubscription)
		if err != nil {
			return fmt.Errorf("db.insert_response.push_subscription: %w", err)
		}
		subJson = sql.NullString{String: string(b), Valid: true}
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO response (id, survey_id, anonymous_id, response_token, answers, push_subscription, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		r.SurveyID,
		r.AnonymousID,
		r.ResponseToken,
		string(answersJson),
		subJson,
		r.SubmittedAt.UTC(),
	)
	if err != nil {
		return insertErr("db.insert_response", err)
	}
	r.ID = id
	return nil
}

const responseColumns = `id, survey_id, anonymous_id, response_token, answers, push_subscription, submitted_at`

func scanResponse(row scanner) (r model.Response, err error) {
	var answers string
	var sub sql.NullString
	err = row.Scan(&r.ID, &r.SurveyID, &r.AnonymousID, &r.ResponseToken, &answers, &sub, &r.SubmittedAt)
	if err != nil {
		return
	}
	r.SubmittedAt = r.SubmittedAt.UTC()
	if err = json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return
	}
	if sub.Valid {
		r.PushSubscription = &model.PushSubscription{}
		err = json.Unmarshal([]byte(sub.String), r.PushSubscription)
	}
	return
}

func (s *SQLiteStore) ResponseByID(ctx context.Context, id string) (model.Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM response WHERE id = ?`, id)
	r, err := scanResponse(row)
	if err != nil {
		return r, lookupErr("db.get_response", err)
	}
	return r, nil
}

func (s *SQLiteStore) ResponseByToken(ctx context.Context, responseToken string) (model.Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM response WHERE response_token = ?`, responseToken)
	r, err := scanResponse(row)
	if err != nil {
		return r, lookupErr("db.get_response_by_token", err)
	}
	return r, nil
}

func (s *SQLiteStore) ResponsesBySurvey(ctx context.Context, surveyID string) ([]model.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+responseColumns+`
		FROM response
		WHERE survey_id = ?
		ORDER BY submitted_at DESC, rowid DESC`,
		surveyID,
	)
	if err != nil {
		return nil, fmt.Errorf("db.get_responses: %w", err)
	}
	defer rows.Close()

	responses := []model.Response{}
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("db.get_responses.scan: %w", err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db.get_responses: %w", err)
	}
	return responses, nil
}

func (s *SQLiteStore) SetPushSubscription(ctx context.Context, responseID string, sub *model.PushSubscription) error {
	var subJson sql.NullString
	if sub != nil {
		b, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("db.update_push_subscription.marshal: %w", err)
		}
		subJson = sql.NullString{String: string(b), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `UPDATE response SET push_subscription = ? WHERE id = ?`, subJson, responseID)
	if err != nil {
		return fmt.Errorf("db.update_push_subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db.update_push_subscription.verify: %w", err)
	}
	if n < 1 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateFollowup(ctx context.Context, f *model.FollowupQuestion) error {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO followup_question (id, response_id, question, created_at, reminder_count)
		VALUES (?, ?, ?, ?, 0)`,
		id,
		f.ResponseID,
		f.Question,
		f.CreatedAt.UTC(),
	)
	if err != nil {
		return insertErr("db.insert_followup", err)
	}
	f.ID = id
	return nil
}

const followupColumns = `id, response_id, question, answer, created_at, answered_at, last_reminder_sent_at, reminder_count`

func scanFollowup(row scanner) (f model.FollowupQuestion, err error) {
	var answer sql.NullString
	var answeredAt, remindedAt sql.NullTime
	err = row.Scan(&f.ID, &f.ResponseID, &f.Question, &answer, &f.CreatedAt, &answeredAt, &remindedAt, &f.ReminderCount)
	if err != nil {
		return
	}
	f.CreatedAt = f.CreatedAt.UTC()
	if answer.Valid {
		f.Answer = &answer.String
	}
	f.AnsweredAt = timePtr(answeredAt)
	f.LastReminderSentAt = timePtr(remindedAt)
	return
}

func (s *SQLiteStore) FollowupByID(ctx context.Context, id string) (model.FollowupQuestion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+followupColumns+` FROM followup_question WHERE id = ?`, id)
	f, err := scanFollowup(row)
	if err != nil {
		return f, lookupErr("db.get_followup", err)
	}
	return f, nil
}

func (s *SQLiteStore) FollowupsByResponses(ctx context.Context, responseIDs ...string) ([]model.FollowupQuestion, error) {
	followups := []model.FollowupQuestion{}
	for len(responseIDs) > 0 {
		chunk := responseIDs
		if len(chunk) > maxInArgs {
			chunk = chunk[:maxInArgs]
		}
		responseIDs = responseIDs[len(chunk):]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+followupColumns+`
			FROM followup_question
			WHERE response_id IN (?`+strings.Repeat(", ?", len(chunk)-1)+`)
			ORDER BY created_at ASC, rowid ASC`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("db.get_followups: %w", err)
		}
		for rows.Next() {
			f, err := scanFollowup(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("db.get_followups.scan: %w", err)
			}
			followups = append(followups, f)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("db.get_followups: %w", err)
		}
	}
	return followups, nil
}

// settled tells a missing follow-up apart from an answered one after a
// conditional update matched no row. Answered is terminal, so the read cannot race.
func (s *SQLiteStore) settled(ctx context.Context, code string, query string, args ...any) error {
	var answered bool
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&answered)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("%s: %w", code, err)
	case answered:
		return ErrAlreadyAnswered
	}
	return fmt.Errorf("%s: conditional update matched no row", code)
}

func (s *SQLiteStore) AnswerFollowup(ctx context.Context, id, responseID, answer string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE followup_question
		SET answer = ?, answered_at = ?
		WHERE id = ?
			AND response_id = ?
			AND answer IS NULL`,
		answer,
		at.UTC(),
		id,
		responseID,
	)
	if err != nil {
		return fmt.Errorf("db.answer_followup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db.answer_followup.verify: %w", err)
	}
	if n > 0 {
		return nil
	}
	return s.settled(ctx, "db.answer_followup.verify",
		`SELECT answer IS NOT NULL FROM followup_question WHERE id = ? AND response_id = ?`, id, responseID)
}

func (s *SQLiteStore) RecordReminder(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE followup_question
		SET reminder_count = reminder_count + 1, last_reminder_sent_at = ?
		WHERE id = ?
			AND answer IS NULL`,
		at.UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("db.record_reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db.record_reminder.verify: %w", err)
	}
	if n > 0 {
		return nil
	}
	return s.settled(ctx, "db.record_reminder.verify",
		`SELECT answer IS NOT NULL FROM followup_question WHERE id = ?`, id)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
