package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kentoooo/mellowq/database"
	"github.com/kentoooo/mellowq/log"
	"github.com/kentoooo/mellowq/metrics"
	"github.com/kentoooo/mellowq/model"
	"github.com/kentoooo/mellowq/push"
	"github.com/kentoooo/mellowq/ratelimit"
	"github.com/kentoooo/mellowq/token"
	"github.com/kentoooo/mellowq/validate"
)

const notificationBodyLen = 100

type FollowupInput struct {
	ResponseID string `json:"responseId"`
	Question   string `json:"question"`
}

type FollowupCreated struct {
	FollowupQuestionID string `json:"followupQuestionId"`
	NotificationSent   bool   `json:"notificationSent"`
}

type FollowupAnswerInput struct {
	FollowupQuestionID string `json:"followupQuestionId"`
	Answer             string `json:"answer"`
}

type ReminderInput struct {
	FollowupQuestionID string `json:"followupQuestionId"`
}

// ThreadResponse is the respondent's own response, minus internal ids.
type ThreadResponse struct {
	SurveyID            string         `json:"surveyId"`
	Answers             []model.Answer `json:"answers"`
	SubmittedAt         time.Time      `json:"submittedAt"`
	HasPushSubscription bool           `json:"hasPushSubscription"`
}

// Thread is what a respondent sees at their follow-up link.
type Thread struct {
	Response          ThreadResponse       `json:"response"`
	Survey            model.SurveySummary  `json:"survey"`
	FollowupQuestions []model.FollowupView `json:"followupQuestions"`
}

func validID(id string) bool {
	return uuid.Validate(id) == nil
}

// text checks a free text field and returns it sanitized.
func text(field, v string, max int) (string, *Error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fail(InvalidInput, field+" is required")
	}
	if utf8.RuneCountInString(v) > max {
		return "", fail(InvalidInput, field+" is too long")
	}
	v = validate.SanitizeN(v, max)
	if v == "" {
		return "", fail(InvalidInput, field+" is required")
	}
	return v, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// CreateFollowup asks the author of a response an additional question and
// notifies them when they left a push subscription. The question is stored
// whatever the notification outcome.
func (s *Service) CreateFollowup(ctx context.Context, source, adminToken string, in FollowupInput) (created FollowupCreated, err error) {
	if err = s.allow(ctx, ratelimit.Followup, source); err != nil {
		return
	}
	if !validID(in.ResponseID) {
		return created, fail(InvalidInput, "invalid response id")
	}
	question, ferr := text("question", in.Question, validate.MaxFollowupText)
	if ferr != nil {
		return created, ferr
	}
	if !token.ValidAdminToken(adminToken) {
		return created, fail(Unauthorized, "invalid admin token")
	}

	survey, err := s.store.SurveyByAdminToken(ctx, adminToken)
	if errors.Is(err, database.ErrNotFound) {
		return created, fail(Unauthorized, "invalid admin token")
	}
	if err != nil {
		return created, internal("service.create_followup.survey", err)
	}

	r, err := s.store.ResponseByID(ctx, in.ResponseID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && r.SurveyID != survey.ID) {
		return created, fail(NotFound, "response not found")
	}
	if err != nil {
		return created, internal("service.create_followup.response", err)
	}

	f := model.FollowupQuestion{
		ResponseID: r.ID,
		Question:   question,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
	}
	if err = s.store.CreateFollowup(ctx, &f); err != nil {
		return created, internal("service.create_followup", err)
	}
	metrics.FollowupsCreated.Inc()
	log.Infof("service.create_followup: follow-up %s added to survey %s", f.ID, survey.ID)

	created.FollowupQuestionID = f.ID
	if r.PushSubscription != nil {
		res := s.notify(ctx, "followup", r, push.Message{
			Title: "A new question about your answer",
			Body:  truncate(question, notificationBodyLen),
			URL:   s.FollowupURL(r.ResponseToken),
		})
		created.NotificationSent = res.Delivered
	}
	return created, nil
}

// AnswerFollowup moves a follow-up question of the response of responseToken
// from unanswered to answered. It happens at most once.
func (s *Service) AnswerFollowup(ctx context.Context, responseToken string, in FollowupAnswerInput) error {
	if !validID(in.FollowupQuestionID) {
		return fail(InvalidInput, "invalid follow-up question id")
	}
	answer, ferr := text("answer", in.Answer, validate.MaxFollowupReply)
	if ferr != nil {
		return ferr
	}
	if !token.ValidResponseToken(responseToken) {
		return fail(NotFound, "response not found")
	}

	r, err := s.store.ResponseByToken(ctx, responseToken)
	if errors.Is(err, database.ErrNotFound) {
		return fail(NotFound, "response not found")
	}
	if err != nil {
		return internal("service.answer_followup.response", err)
	}

	err = s.store.AnswerFollowup(ctx, in.FollowupQuestionID, r.ID, answer, s.now().UTC().Truncate(time.Millisecond))
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fail(NotFound, "follow-up question not found")
	case errors.Is(err, database.ErrAlreadyAnswered):
		return fail(AlreadyAnswered, "follow-up question already answered")
	case err != nil:
		return internal("service.answer_followup", err)
	}

	metrics.FollowupsAnswered.Inc()
	return nil
}

// SendReminder pushes a reminder about an unanswered follow-up question.
// The reminder is only counted once the push service accepted it.
func (s *Service) SendReminder(ctx context.Context, source, adminToken string, in ReminderInput) error {
	if err := s.allow(ctx, ratelimit.Followup, source); err != nil {
		return err
	}
	if !validID(in.FollowupQuestionID) {
		return fail(InvalidInput, "invalid follow-up question id")
	}
	if !token.ValidAdminToken(adminToken) {
		return fail(NotFound, "survey not found")
	}

	survey, err := s.store.SurveyByAdminToken(ctx, adminToken)
	if errors.Is(err, database.ErrNotFound) {
		return fail(NotFound, "survey not found")
	}
	if err != nil {
		return internal("service.send_reminder.survey", err)
	}

	f, err := s.store.FollowupByID(ctx, in.FollowupQuestionID)
	if errors.Is(err, database.ErrNotFound) {
		return fail(NotFound, "follow-up question not found")
	}
	if err != nil {
		return internal("service.send_reminder.followup", err)
	}

	r, err := s.store.ResponseByID(ctx, f.ResponseID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && r.SurveyID != survey.ID) {
		return fail(Forbidden, "follow-up question belongs to another survey")
	}
	if err != nil {
		return internal("service.send_reminder.response", err)
	}

	if f.Status() == model.Answered {
		return fail(AlreadyAnswered, "follow-up question already answered")
	}
	if r.PushSubscription == nil {
		return fail(NotFound, "push subscription not found")
	}

	res := s.notify(ctx, "reminder", r, push.Message{
		Title: "A question is still waiting for you",
		Body:  "You have an unanswered follow-up question about your survey answer.",
		URL:   s.FollowupURL(r.ResponseToken),
	})
	if !res.Delivered {
		return fail(DeliveryFailed, "failed to send push notification: "+res.Reason)
	}

	err = s.store.RecordReminder(ctx, f.ID, s.now().UTC().Truncate(time.Millisecond))
	switch {
	case errors.Is(err, database.ErrAlreadyAnswered):
		return fail(AlreadyAnswered, "follow-up question already answered")
	case errors.Is(err, database.ErrNotFound):
		return fail(NotFound, "follow-up question not found")
	case err != nil:
		return internal("service.send_reminder", err)
	}
	return nil
}

// Thread returns the response of responseToken with its survey and follow-up questions.
func (s *Service) Thread(ctx context.Context, responseToken string) (thread Thread, err error) {
	if !token.ValidResponseToken(responseToken) {
		return thread, fail(NotFound, "response not found")
	}

	r, err := s.store.ResponseByToken(ctx, responseToken)
	if errors.Is(err, database.ErrNotFound) {
		return thread, fail(NotFound, "response not found")
	}
	if err != nil {
		return thread, internal("service.thread.response", err)
	}

	survey, err := s.store.SurveyByID(ctx, r.SurveyID)
	if errors.Is(err, database.ErrNotFound) {
		return thread, fail(NotFound, "survey not found")
	}
	if err != nil {
		return thread, internal("service.thread.survey", err)
	}

	followups, err := s.store.FollowupsByResponses(ctx, r.ID)
	if err != nil {
		return thread, internal("service.thread.followups", err)
	}

	thread.Response = ThreadResponse{
		SurveyID:            r.SurveyID,
		Answers:             r.Answers,
		SubmittedAt:         r.SubmittedAt,
		HasPushSubscription: r.PushSubscription != nil,
	}
	thread.Survey = survey.Summary()
	thread.FollowupQuestions = make([]model.FollowupView, 0, len(followups))
	for _, f := range followups {
		thread.FollowupQuestions = append(thread.FollowupQuestions, f.View())
	}
	return thread, nil
}
