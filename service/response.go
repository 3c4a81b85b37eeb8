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

type ResponseInput struct {
	Answers          []model.Answer          `json:"answers"`
	PushSubscription *model.PushSubscription `json:"pushSubscription"`
}

// SubmittedResponse carries the only credential a respondent ever gets.
type SubmittedResponse struct {
	ResponseToken string `json:"responseToken"`
}

// sanitizeAnswers cleans every string value and drops answers that carry nothing.
func sanitizeAnswers(answers []model.Answer) []model.Answer {
	clean := make([]model.Answer, 0, len(answers))
	for _, a := range answers {
		switch a.Value.Kind {
		case model.StringValue:
			v := validate.Sanitize(a.Value.Str)
			if v == "" {
				continue
			}
			a.Value = model.StringAnswer(v)
		case model.ListValue:
			list := make([]string, 0, len(a.Value.List))
			for _, item := range a.Value.List {
				if item = validate.Sanitize(item); item != "" {
					list = append(list, item)
				}
			}
			if len(list) == 0 {
				continue
			}
			a.Value = model.ListAnswer(list...)
		default:
			continue
		}
		clean = append(clean, a)
	}
	return clean
}

// SubmitResponse records the answers of an anonymous respondent to surveyID.
func (s *Service) SubmitResponse(ctx context.Context, source, surveyID string, in ResponseInput) (submitted SubmittedResponse, err error) {
	if err = s.allow(ctx, ratelimit.ResponseSubmission, source); err != nil {
		return
	}
	if !token.ValidSurveyID(surveyID) {
		return submitted, fail(InvalidID, "invalid survey id")
	}

	survey, err := s.store.SurveyByID(ctx, surveyID)
	if errors.Is(err, database.ErrNotFound) {
		return submitted, fail(NotFound, "survey not found")
	}
	if err != nil {
		return submitted, internal("service.submit_response.survey", err)
	}

	errs := validate.Answers(in.Answers, survey.Questions)
	if in.PushSubscription != nil {
		for _, e := range validate.Struct(in.PushSubscription) {
			errs = append(errs, "pushSubscription: "+e)
		}
	}
	if len(errs) > 0 {
		return submitted, invalid(errs)
	}

	r := model.Response{
		SurveyID:         survey.ID,
		Answers:          sanitizeAnswers(in.Answers),
		PushSubscription: in.PushSubscription,
		SubmittedAt:      s.now().UTC().Truncate(time.Millisecond),
	}
	for attempt := 0; ; attempt++ {
		r.AnonymousID = s.tokens.AnonymousID()
		r.ResponseToken = s.tokens.ResponseToken()
		err = s.store.CreateResponse(ctx, &r)
		if err == nil {
			break
		}
		if !errors.Is(err, database.ErrConflict) {
			return submitted, internal("service.submit_response", err)
		}
		if attempt > 0 {
			return submitted, &Error{Code: Conflict, Message: "could not allocate a unique response token", Err: err}
		}
		log.Warnf("service.submit_response: token collision, retrying")
	}

	metrics.ResponsesSubmitted.Inc()
	log.Debugf("service.submit_response: response to survey %s stored", survey.ID)

	return SubmittedResponse{ResponseToken: r.ResponseToken}, nil
}

// Subscribe attaches sub to the response of responseToken, replacing any previous one.
func (s *Service) Subscribe(ctx context.Context, responseToken string, sub model.PushSubscription) error {
	if errs := validate.Struct(sub); len(errs) > 0 {
		return invalid(errs)
	}
	if !token.ValidResponseToken(responseToken) {
		return fail(NotFound, "response not found")
	}

	r, err := s.store.ResponseByToken(ctx, responseToken)
	if errors.Is(err, database.ErrNotFound) {
		return fail(NotFound, "response not found")
	}
	if err != nil {
		return internal("service.subscribe.response", err)
	}

	if err = s.store.SetPushSubscription(ctx, r.ID, &sub); err != nil {
		return internal("service.subscribe", err)
	}
	return nil
}
