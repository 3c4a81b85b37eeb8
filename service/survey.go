package service

import (
	"context"
	"errors"
	"time"

	"github.com/kentoooo/mellowq/database"
	"github.com/kentoooo/mellowq/log"
	"github.com/kentoooo/mellowq/metrics"
	"github.com/kentoooo/mellowq/model"
	"github.com/kentoooo/mellowq/ratelimit"
	"github.com/kentoooo/mellowq/token"
	"github.com/kentoooo/mellowq/validate"
)

type CreatedSurvey struct {
	SurveyID   string `json:"surveyId"`
	AdminToken string `json:"adminToken"`
	SurveyURL  string `json:"surveyUrl"`
	AdminURL   string `json:"adminUrl"`
}

func sanitizeSurvey(in validate.SurveyInput) validate.SurveyInput {
	if s, ok := in.Title.(string); ok {
		in.Title = validate.Sanitize(s)
	}
	if s, ok := in.Description.(string); ok {
		in.Description = validate.Sanitize(s)
	}
	if in.Questions == nil {
		return in
	}

	questions := make([]validate.QuestionInput, len(in.Questions))
	for i, q := range in.Questions {
		if s, ok := q.Text.(string); ok {
			q.Text = validate.Sanitize(s)
		}
		kind, _ := q.Kind()
		switch list, ok := q.OptionList(); {
		case !kind.HasOptions():
			q.Options = nil
		case ok:
			options := make([]string, 0, len(list))
			for _, o := range list {
				if o = validate.Sanitize(o); o != "" {
					options = append(options, o)
				}
			}
			q.Options = options
		}
		questions[i] = q
	}
	in.Questions = questions
	return in
}

// CreateSurvey validates in and stores it as a new survey owned by whoever
// holds the returned admin token.
func (s *Service) CreateSurvey(ctx context.Context, source string, in validate.SurveyInput) (created CreatedSurvey, err error) {
	if err = s.allow(ctx, ratelimit.SurveyCreation, source); err != nil {
		return
	}

	in = sanitizeSurvey(in)
	if errs := validate.Survey(in); len(errs) > 0 {
		return created, invalid(errs)
	}

	survey := model.Survey{
		Title:       in.Title.(string),
		Description: in.Description.(string),
		Questions:   make([]model.Question, 0, len(in.Questions)),
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	seen := make(map[string]bool, len(in.Questions))
	for _, q := range in.Questions {
		id := s.tokens.QuestionID()
		for seen[id] {
			id = s.tokens.QuestionID()
		}
		seen[id] = true
		kind, _ := q.Kind()
		options, _ := q.OptionList()
		required, _ := q.IsRequired()
		survey.Questions = append(survey.Questions, model.Question{
			ID:       id,
			Type:     kind,
			Text:     q.Text.(string),
			Options:  options,
			Required: required,
		})
	}

	// a uniqueness conflict gets one retry with fresh tokens
	for attempt := 0; ; attempt++ {
		survey.ID = s.tokens.SurveyID()
		survey.AdminToken = s.tokens.AdminToken()
		err = s.store.CreateSurvey(ctx, survey)
		if err == nil {
			break
		}
		if !errors.Is(err, database.ErrConflict) {
			return created, internal("service.create_survey", err)
		}
		if attempt > 0 {
			return created, &Error{Code: Conflict, Message: "could not allocate a unique survey id", Err: err}
		}
		log.Warnf("service.create_survey: token collision, retrying")
	}

	metrics.SurveysCreated.Inc()
	log.Infof("service.create_survey: survey %s created with %d questions", survey.ID, len(survey.Questions))

	return CreatedSurvey{
		SurveyID:   survey.ID,
		AdminToken: survey.AdminToken,
		SurveyURL:  s.SurveyURL(survey.ID),
		AdminURL:   s.AdminURL(survey.AdminToken),
	}, nil
}

// PublicSurvey returns the survey as respondents see it, without its admin token.
func (s *Service) PublicSurvey(ctx context.Context, surveyID string) (model.PublicSurvey, error) {
	if !token.ValidSurveyID(surveyID) {
		return model.PublicSurvey{}, fail(InvalidID, "invalid survey id")
	}
	survey, err := s.store.SurveyByID(ctx, surveyID)
	if errors.Is(err, database.ErrNotFound) {
		return model.PublicSurvey{}, fail(NotFound, "survey not found")
	}
	if err != nil {
		return model.PublicSurvey{}, internal("service.public_survey", err)
	}
	return survey.Public(), nil
}

// AdminResponse is a response as its survey owner sees it. The respondent's
// token and raw push subscription stay hidden.
type AdminResponse struct {
	ID                  string               `json:"id"`
	AnonymousID         string               `json:"anonymousId"`
	Answers             []model.Answer       `json:"answers"`
	SubmittedAt         time.Time            `json:"submittedAt"`
	HasPushSubscription bool                 `json:"hasPushSubscription"`
	FollowupQuestions   []model.FollowupView `json:"followupQuestions"`
}

type AdminView struct {
	Survey    model.PublicSurvey `json:"survey"`
	Responses []AdminResponse    `json:"responses"`
	Stats     Stats              `json:"stats"`
}

// AdminView gathers the survey of adminToken with every response, their
// follow-up questions and per question statistics.
// Malformed and unknown tokens are indistinguishable.
func (s *Service) AdminView(ctx context.Context, adminToken string) (view AdminView, err error) {
	if !token.ValidAdminToken(adminToken) {
		return view, fail(NotFound, "survey not found")
	}
	survey, err := s.store.SurveyByAdminToken(ctx, adminToken)
	if errors.Is(err, database.ErrNotFound) {
		return view, fail(NotFound, "survey not found")
	}
	if err != nil {
		return view, internal("service.admin_view.survey", err)
	}

	responses, err := s.store.ResponsesBySurvey(ctx, survey.ID)
	if err != nil {
		return view, internal("service.admin_view.responses", err)
	}

	ids := make([]string, len(responses))
	for i, r := range responses {
		ids[i] = r.ID
	}
	followups, err := s.store.FollowupsByResponses(ctx, ids...)
	if err != nil {
		return view, internal("service.admin_view.followups", err)
	}
	byResponse := make(map[string][]model.FollowupView, len(responses))
	for _, f := range followups {
		byResponse[f.ResponseID] = append(byResponse[f.ResponseID], f.View())
	}

	view.Survey = survey.Public()
	view.Responses = make([]AdminResponse, 0, len(responses))
	for _, r := range responses {
		fv := byResponse[r.ID]
		if fv == nil {
			fv = []model.FollowupView{}
		}
		view.Responses = append(view.Responses, AdminResponse{
			ID:                  r.ID,
			AnonymousID:         r.AnonymousID,
			Answers:             r.Answers,
			SubmittedAt:         r.SubmittedAt,
			HasPushSubscription: r.PushSubscription != nil,
			FollowupQuestions:   fv,
		})
	}
	view.Stats = computeStats(survey.Questions, responses)
	return view, nil
}
