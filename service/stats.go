package service

import (
	"strings"

	"github.com/kentoooo/mellowq/model"
)

type Stats struct {
	TotalResponses int             `json:"totalResponses"`
	QuestionsStats []QuestionStats `json:"questionsStats"`
}

type QuestionStats struct {
	QuestionID string             `json:"questionId"`
	Type       model.QuestionType `json:"type"`
	Text       string             `json:"text"`
	// OptionCounts has an entry for every declared option, zero included.
	// Text questions have none.
	OptionCounts map[string]int `json:"optionCounts,omitempty"`
	TotalAnswers int            `json:"totalAnswers"`
}

func computeStats(questions []model.Question, responses []model.Response) Stats {
	stats := Stats{
		TotalResponses: len(responses),
		QuestionsStats: make([]QuestionStats, 0, len(questions)),
	}

	for _, q := range questions {
		qs := QuestionStats{QuestionID: q.ID, Type: q.Type, Text: q.Text}
		if q.Type.HasOptions() {
			qs.OptionCounts = make(map[string]int, len(q.Options))
			for _, o := range q.Options {
				qs.OptionCounts[o] = 0
			}
		}

		for _, r := range responses {
			v, ok := answerTo(r, q.ID)
			if !ok {
				continue
			}
			switch q.Type {
			case model.Radio:
				if v.Kind == model.StringValue && q.HasOption(v.Str) {
					qs.OptionCounts[v.Str]++
					qs.TotalAnswers++
				}
			case model.Checkbox:
				if v.Kind != model.ListValue {
					continue
				}
				counted := false
				picked := make(map[string]bool, len(v.List))
				for _, o := range v.List {
					if picked[o] || !q.HasOption(o) {
						continue
					}
					picked[o] = true
					qs.OptionCounts[o]++
					counted = true
				}
				if counted {
					qs.TotalAnswers++
				}
			case model.Text:
				if v.Kind == model.StringValue && strings.TrimSpace(v.Str) != "" {
					qs.TotalAnswers++
				}
			}
		}

		stats.QuestionsStats = append(stats.QuestionsStats, qs)
	}
	return stats
}

func answerTo(r model.Response, questionID string) (model.AnswerValue, bool) {
	for _, a := range r.Answers {
		if a.QuestionID == questionID {
			return a.Value, true
		}
	}
	return model.AnswerValue{}, false
}
