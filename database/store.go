package database

import (
	"context"
	"errors"
	"time"

	"github.com/kentoooo/mellowq/model"
)

var (
	// ErrNotFound is returned by lookups and conditional updates that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violated")
	// ErrAlreadyAnswered is returned when a follow-up question is no longer unanswered.
	ErrAlreadyAnswered = errors.New("follow-up question already answered")
)

// Store owns the surveys, responses and follow-up questions collections.
type Store interface {
	// CreateSurvey inserts s as is: its id and admin token are minted by the caller.
	CreateSurvey(ctx context.Context, s model.Survey) error
	SurveyByID(ctx context.Context, id string) (model.Survey, error)
	SurveyByAdminToken(ctx context.Context, adminToken string) (model.Survey, error)

	// CreateResponse assigns r.ID and inserts r.
	CreateResponse(ctx context.Context, r *model.Response) error
	ResponseByID(ctx context.Context, id string) (model.Response, error)
	ResponseByToken(ctx context.Context, responseToken string) (model.Response, error)
	// ResponsesBySurvey lists responses newest first.
	ResponsesBySurvey(ctx context.Context, surveyID string) ([]model.Response, error)
	// SetPushSubscription replaces the subscription of a response; nil removes it.
	SetPushSubscription(ctx context.Context, responseID string, sub *model.PushSubscription) error

	// CreateFollowup assigns f.ID and inserts f.
	CreateFollowup(ctx context.Context, f *model.FollowupQuestion) error
	FollowupByID(ctx context.Context, id string) (model.FollowupQuestion, error)
	// FollowupsByResponses lists the follow-ups of the given responses oldest first.
	FollowupsByResponses(ctx context.Context, responseIDs ...string) ([]model.FollowupQuestion, error)
	// AnswerFollowup sets the answer only if the question belongs to responseID
	// and is still unanswered, in a single conditional write.
	AnswerFollowup(ctx context.Context, id, responseID, answer string, at time.Time) error
	// RecordReminder bumps the reminder counter of an unanswered question.
	RecordReminder(ctx context.Context, id string, at time.Time) error

	Ping(ctx context.Context) error
	Close() error
}
