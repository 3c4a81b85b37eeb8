// Package service implements the survey lifecycle, response collection and
// follow-up dialogue on top of a database.Store.
//
// Every operation checks rate limits and identifier shapes before it touches
// the store, and every rejected input is reported before anything is written.
package service

import (
	"context"
	"time"

	"github.com/kentoooo/mellowq/database"
	"github.com/kentoooo/mellowq/log"
	"github.com/kentoooo/mellowq/metrics"
	"github.com/kentoooo/mellowq/model"
	"github.com/kentoooo/mellowq/push"
	"github.com/kentoooo/mellowq/ratelimit"
	"github.com/kentoooo/mellowq/token"
)

type Options struct {
	Store database.Store
	// Limiter may be nil to disable rate limiting.
	Limiter *ratelimit.Limiter
	// Push may be nil when web push is not configured.
	Push    push.Sender
	Tokens  token.Generator
	BaseURL string
	Now     func() time.Time
}

type Service struct {
	store   database.Store
	limiter *ratelimit.Limiter
	push    push.Sender
	tokens  token.Generator
	baseURL string
	now     func() time.Time
}

func New(opts Options) *Service {
	s := &Service{
		store:   opts.Store,
		limiter: opts.Limiter,
		push:    opts.Push,
		tokens:  opts.Tokens,
		baseURL: opts.BaseURL,
		now:     opts.Now,
	}
	if s.tokens == nil {
		s.tokens = token.Random
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) SurveyURL(surveyID string) string {
	return s.baseURL + "/survey/" + surveyID
}

func (s *Service) AdminURL(adminToken string) string {
	return s.baseURL + "/manage/" + adminToken
}

func (s *Service) FollowupURL(responseToken string) string {
	return s.baseURL + "/followup/" + responseToken
}

// allow enforces the rate limit of action for source. A failing counter
// store lets the request through: availability wins over strict quotas.
func (s *Service) allow(ctx context.Context, action ratelimit.Action, source string) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, action, source)
	if err != nil {
		log.Errorf("service.ratelimit: %v", err)
		return nil
	}
	if !ok {
		metrics.RateLimited.WithLabelValues(string(action)).Inc()
		return fail(RateLimit, "too many requests, please try again later")
	}
	return nil
}

// notify makes a single delivery attempt to the subscription of r and prunes
// the subscription when the push service reports it gone.
func (s *Service) notify(ctx context.Context, kind string, r model.Response, msg push.Message) push.Result {
	if r.PushSubscription == nil {
		metrics.PushDeliveries.WithLabelValues(kind, "skipped").Inc()
		return push.Result{Reason: "no push subscription"}
	}
	if s.push == nil {
		metrics.PushDeliveries.WithLabelValues(kind, "skipped").Inc()
		return push.Result{Reason: "push notifications are not configured"}
	}

	res := s.push.Send(ctx, *r.PushSubscription, msg)
	switch {
	case res.Delivered:
		metrics.PushDeliveries.WithLabelValues(kind, "delivered").Inc()
	case res.Gone:
		metrics.PushDeliveries.WithLabelValues(kind, "gone").Inc()
		if err := s.store.SetPushSubscription(ctx, r.ID, nil); err != nil {
			log.Warnf("service.notify.prune: %v", err)
		}
	default:
		metrics.PushDeliveries.WithLabelValues(kind, "failed").Inc()
		log.Warnf("service.notify: %s not delivered: %s", kind, res.Reason)
	}
	return res
}

// Health reports whether the store is reachable.
func (s *Service) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return internal("service.health", err)
	}
	return nil
}
