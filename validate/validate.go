// Package validate enforces the structural and size rules on surveys and answers.
//
// Every check collects all violations instead of stopping at the first one, so a
// client can fix its whole payload in a single round trip.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kentoooo/mellowq/model"
)

const (
	MaxTitle         = 200
	MaxDescription   = 1000
	MaxQuestions     = 50
	MaxQuestionText  = 500
	MaxOptions       = 20
	MaxText          = 5000
	MaxFollowupText  = 2000
	MaxFollowupReply = 5000
)

// SurveyInput is a survey creation payload as sent by the client.
// Scalar and option fields are untyped so that a wrong JSON type is a
// validation failure rather than a decoding failure.
type SurveyInput struct {
	Title       any             `json:"title"`
	Description any             `json:"description"`
	Questions   []QuestionInput `json:"questions"`
}

type QuestionInput struct {
	Type     any `json:"type"`
	Text     any `json:"text"`
	Options  any `json:"options"`
	Required any `json:"required"`
}

// Kind returns the declared question type. ok is false when it is not a string.
func (q QuestionInput) Kind() (t model.QuestionType, ok bool) {
	switch v := q.Type.(type) {
	case model.QuestionType:
		return v, true
	case string:
		return model.QuestionType(v), true
	}
	return "", false
}

// OptionList returns the options. ok is false unless they form a list of strings.
func (q QuestionInput) OptionList() (options []string, ok bool) {
	switch v := q.Options.(type) {
	case nil:
		return nil, true
	case []string:
		return v, true
	case []any:
		options = make([]string, 0, len(v))
		for _, o := range v {
			s, isString := o.(string)
			if !isString {
				return nil, false
			}
			options = append(options, s)
		}
		return options, true
	}
	return nil, false
}

// IsRequired returns the required flag, false when absent. ok is false when it is not a boolean.
func (q QuestionInput) IsRequired() (required bool, ok bool) {
	switch v := q.Required.(type) {
	case nil:
		return false, true
	case bool:
		return v, true
	}
	return false, false
}

// Sanitize strips angle brackets, trims surrounding space and truncates to MaxText.
func Sanitize(s string) string {
	return SanitizeN(s, MaxText)
}

func SanitizeN(s string, max int) string {
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max])
	}
	return s
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

// Survey returns every rule the payload breaks. An empty result means valid.
func Survey(in SurveyInput) (errs []string) {
	title, ok := in.Title.(string)
	switch {
	case !ok || strings.TrimSpace(title) == "":
		errs = append(errs, "title is required")
	case length(title) > MaxTitle:
		errs = append(errs, fmt.Sprintf("title must be at most %d characters", MaxTitle))
	}

	desc, ok := in.Description.(string)
	switch {
	case !ok || strings.TrimSpace(desc) == "":
		errs = append(errs, "description is required")
	case length(desc) > MaxDescription:
		errs = append(errs, fmt.Sprintf("description must be at most %d characters", MaxDescription))
	}

	switch {
	case len(in.Questions) == 0:
		errs = append(errs, "at least one question is required")
	case len(in.Questions) > MaxQuestions:
		errs = append(errs, fmt.Sprintf("at most %d questions are allowed", MaxQuestions))
	}

	for i, q := range in.Questions {
		n := i + 1

		text, ok := q.Text.(string)
		switch {
		case !ok || strings.TrimSpace(text) == "":
			errs = append(errs, fmt.Sprintf("question %d: text is required", n))
		case length(text) > MaxQuestionText:
			errs = append(errs, fmt.Sprintf("question %d: text must be at most %d characters", n, MaxQuestionText))
		}

		if _, ok := q.IsRequired(); !ok {
			errs = append(errs, fmt.Sprintf("question %d: required must be true or false", n))
		}

		kind, ok := q.Kind()
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("question %d: type must be one of radio, checkbox, text", n))
			continue
		case !kind.Valid():
			errs = append(errs, fmt.Sprintf("question %d: type %q must be one of radio, checkbox, text", n, kind))
			continue
		case !kind.HasOptions():
			continue
		}
		options, ok := q.OptionList()
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("question %d: options must be a list of strings", n))
		case len(options) == 0:
			errs = append(errs, fmt.Sprintf("question %d: options are required", n))
		case len(options) > MaxOptions:
			errs = append(errs, fmt.Sprintf("question %d: at most %d options are allowed", n, MaxOptions))
		}
	}

	return
}

// answered reports whether v carries an actual answer.
func answered(v model.AnswerValue) bool {
	switch v.Kind {
	case model.NoValue:
		return false
	case model.StringValue:
		return strings.TrimSpace(v.Str) != ""
	case model.ListValue:
		return len(v.List) > 0
	}
	return true
}

// Answers checks answers against the questions of their survey.
func Answers(answers []model.Answer, questions []model.Question) (errs []string) {
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	given := make(map[string]bool, len(answers))
	for _, a := range answers {
		if answered(a.Value) {
			given[a.QuestionID] = true
		}
	}

	for _, q := range questions {
		if q.Required && !given[q.ID] {
			errs = append(errs, fmt.Sprintf("%q is required", q.Text))
		}
	}

	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			errs = append(errs, fmt.Sprintf("answer references unknown question %q", a.QuestionID))
			continue
		}
		if !answered(a.Value) {
			continue
		}

		switch q.Type {
		case model.Text:
			switch {
			case a.Value.Kind != model.StringValue:
				errs = append(errs, fmt.Sprintf("%q: answer must be text", q.Text))
			case length(a.Value.Str) > MaxText:
				errs = append(errs, fmt.Sprintf("%q: answer must be at most %d characters", q.Text, MaxText))
			}

		case model.Radio:
			switch {
			case a.Value.Kind != model.StringValue:
				errs = append(errs, fmt.Sprintf("%q: answer must be a single option", q.Text))
			case !q.HasOption(a.Value.Str):
				errs = append(errs, fmt.Sprintf("%q: %q is not a valid option", q.Text, a.Value.Str))
			}

		case model.Checkbox:
			if a.Value.Kind != model.ListValue {
				errs = append(errs, fmt.Sprintf("%q: answer must be a list of options", q.Text))
				break
			}
			var invalid []string
			for _, v := range a.Value.List {
				if !q.HasOption(v) {
					invalid = append(invalid, fmt.Sprintf("%q", v))
				}
			}
			if len(invalid) > 0 {
				errs = append(errs, fmt.Sprintf("%q: %s not valid options", q.Text, strings.Join(invalid, ", ")))
			}
		}
	}

	return
}
