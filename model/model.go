package model

import (
	"bytes"
	"encoding/json"
	"time"
)

type QuestionType string

const (
	Radio    QuestionType = "radio"
	Checkbox QuestionType = "checkbox"
	Text     QuestionType = "text"
)

func (t QuestionType) Valid() bool {
	switch t {
	case Radio, Checkbox, Text:
		return true
	}
	return false
}

// HasOptions reports whether answers to the question must be picked from Options.
func (t QuestionType) HasOptions() bool {
	return t == Radio || t == Checkbox
}

type Survey struct {
	ID          string     `json:"id"`
	AdminToken  string     `json:"adminToken"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// PublicSurvey is what anybody holding the survey id may see.
// It has no admin token field at all.
type PublicSurvey struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

func (s Survey) Public() PublicSurvey {
	return PublicSurvey{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Questions:   s.Questions,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
	}
}

// SurveySummary is the part of a survey shown to a respondent on the follow-up page.
type SurveySummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

func (s Survey) Summary() SurveySummary {
	return SurveySummary{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Questions:   s.Questions,
	}
}

type Question struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Text     string       `json:"text"`
	Options  []string     `json:"options,omitempty"`
	Required bool         `json:"required"`
}

func (q Question) HasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

type Response struct {
	ID               string            `json:"id"`
	SurveyID         string            `json:"surveyId"`
	AnonymousID      string            `json:"anonymousId"`
	ResponseToken    string            `json:"responseToken"`
	Answers          []Answer          `json:"answers"`
	PushSubscription *PushSubscription `json:"pushSubscription,omitempty"`
	SubmittedAt      time.Time         `json:"submittedAt"`
}

type Answer struct {
	QuestionID string      `json:"questionId"`
	Value      AnswerValue `json:"value"`
}

type ValueKind int

const (
	// NoValue means the value was absent or null.
	NoValue ValueKind = iota
	StringValue
	ListValue
	// InvalidValue is anything else (numbers, objects, mixed lists).
	InvalidValue
)

// AnswerValue is a single string (radio, text) or a list of strings (checkbox).
// Decoding never fails: shapes that fit neither are kept as InvalidValue so
// that validation can report them alongside every other problem.
type AnswerValue struct {
	Kind ValueKind
	Str  string
	List []string
}

func StringAnswer(s string) AnswerValue {
	return AnswerValue{Kind: StringValue, Str: s}
}

func ListAnswer(l ...string) AnswerValue {
	if l == nil {
		l = []string{}
	}
	return AnswerValue{Kind: ListValue, List: l}
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case StringValue:
		return json.Marshal(v.Str)
	case ListValue:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	}
	return []byte("null"), nil
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	*v = AnswerValue{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = StringAnswer(s)
		return nil
	}
	var l []string
	if err := json.Unmarshal(data, &l); err == nil {
		*v = ListAnswer(l...)
		return nil
	}
	v.Kind = InvalidValue
	return nil
}

// PushSubscription is the browser's PushSubscription.toJSON() output.
type PushSubscription struct {
	Endpoint       string  `json:"endpoint" bson:"endpoint" validate:"required,url"`
	ExpirationTime *int64  `json:"expirationTime,omitempty" bson:"expirationTime,omitempty"`
	Keys           PushKey `json:"keys" bson:"keys"`
}

type PushKey struct {
	P256dh string `json:"p256dh" bson:"p256dh" validate:"required"`
	Auth   string `json:"auth" bson:"auth" validate:"required"`
}

type FollowupStatus string

const (
	Unanswered FollowupStatus = "unanswered"
	Answered   FollowupStatus = "answered"
)

type FollowupQuestion struct {
	ID                 string     `json:"id"`
	ResponseID         string     `json:"responseId"`
	Question           string     `json:"question"`
	Answer             *string    `json:"answer,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	AnsweredAt         *time.Time `json:"answeredAt,omitempty"`
	LastReminderSentAt *time.Time `json:"lastReminderSentAt,omitempty"`
	ReminderCount      int        `json:"reminderCount"`
}

func (f FollowupQuestion) Status() FollowupStatus {
	if f.Answer != nil {
		return Answered
	}
	return Unanswered
}

// FollowupView adds the derived status to a follow-up question.
type FollowupView struct {
	FollowupQuestion
	Status FollowupStatus `json:"status"`
}

func (f FollowupQuestion) View() FollowupView {
	return FollowupView{f, f.Status()}
}
