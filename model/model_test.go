package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerValue_Decode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want AnswerValue
	}{
		{"string", `"A"`, StringAnswer("A")},
		{"list", `["A","B"]`, ListAnswer("A", "B")},
		{"empty list", `[]`, ListAnswer()},
		{"null", `null`, AnswerValue{}},
		{"number", `42`, AnswerValue{Kind: InvalidValue}},
		{"mixed list", `["A",1]`, AnswerValue{Kind: InvalidValue}},
		{"object", `{"a":"b"}`, AnswerValue{Kind: InvalidValue}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Answer
			err := json.Unmarshal([]byte(`{"questionId":"q1","value":`+tt.raw+`}`), &a)
			require.NoError(t, err)
			assert.Equal(t, "q1", a.QuestionID)
			assert.Equal(t, tt.want, a.Value)
		})
	}
}

func TestAnswerValue_Encode(t *testing.T) {
	b, err := json.Marshal([]Answer{
		{QuestionID: "q1", Value: StringAnswer("A")},
		{QuestionID: "q2", Value: AnswerValue{Kind: ListValue}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"questionId":"q1","value":"A"},{"questionId":"q2","value":[]}]`, string(b))
}

func TestSurvey_PublicHasNoAdminToken(t *testing.T) {
	s := Survey{ID: "abc", AdminToken: "secret-admin-token", Title: "t"}

	b, err := json.Marshal(s.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret-admin-token")
	assert.NotContains(t, string(b), "adminToken")
}

func TestFollowupQuestion_View(t *testing.T) {
	f := FollowupQuestion{ID: "f1"}
	assert.Equal(t, Unanswered, f.View().Status)

	answer := "yes"
	f.Answer = &answer
	b, err := json.Marshal(f.View())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"answered"`)
	assert.Contains(t, string(b), `"answer":"yes"`)
}
