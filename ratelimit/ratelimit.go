// Package ratelimit gates the mutating public endpoints per caller address.
//
// Each action has its own fixed window: the first request from a key opens a
// window of Rule.Window and sets the counter to 1, later requests in the window
// are allowed while the counter is below Rule.Max, and the counter starts over
// once the window has expired.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type Action string

const (
	SurveyCreation     Action = "survey_creation"
	ResponseSubmission Action = "response_submission"
	Followup           Action = "followup"
)

type Rule struct {
	Max    int
	Window time.Duration
}

var DefaultRules = map[Action]Rule{
	SurveyCreation:     {Max: 5, Window: time.Minute},
	ResponseSubmission: {Max: 10, Window: time.Minute},
	Followup:           {Max: 20, Window: time.Minute},
}

// Store keeps the counters. Increment must be atomic per key: two concurrent
// calls may never both observe a count below max for the last free slot.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, max int) (allowed bool, err error)
}

type Limiter struct {
	store Store
	rules map[Action]Rule
}

// New returns a Limiter using rules, or DefaultRules when rules is nil.
func New(store Store, rules map[Action]Rule) *Limiter {
	if rules == nil {
		rules = DefaultRules
	}
	return &Limiter{store: store, rules: rules}
}

// Allow records one request of action from source and reports whether it may proceed.
// Actions without a rule are always allowed.
func (l *Limiter) Allow(ctx context.Context, action Action, source string) (bool, error) {
	rule, ok := l.rules[action]
	if !ok {
		return true, nil
	}
	allowed, err := l.store.Increment(ctx, key(action, source), rule.Window, rule.Max)
	if err != nil {
		return false, fmt.Errorf("ratelimit %s: %w", action, err)
	}
	return allowed, nil
}

func key(action Action, source string) string {
	return "ratelimit:" + string(action) + ":" + source
}
