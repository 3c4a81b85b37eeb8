package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentoooo/mellowq/database"
	"github.com/kentoooo/mellowq/model"
	"github.com/kentoooo/mellowq/push"
	"github.com/kentoooo/mellowq/ratelimit"
	"github.com/kentoooo/mellowq/token"
	"github.com/kentoooo/mellowq/validate"
)

const source = "192.0.2.1"

type sent struct {
	sub model.PushSubscription
	msg push.Message
}

type fakeSender struct {
	mu     sync.Mutex
	result push.Result
	sent   []sent
}

func (f *fakeSender) Send(_ context.Context, sub model.PushSubscription, msg push.Message) push.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{sub, msg})
	return f.result
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixture struct {
	svc    *Service
	store  database.Store
	sender *fakeSender
	now    time.Time
}

func newFixture(t *testing.T, limiter *ratelimit.Limiter) *fixture {
	t.Helper()
	store, err := database.OpenSQLite(filepath.Join(t.TempDir(), "service.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:  store,
		sender: &fakeSender{result: push.Result{Delivered: true}},
		now:    time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = New(Options{
		Store:   store,
		Limiter: limiter,
		Push:    f.sender,
		BaseURL: "https://mellowq.test",
		Now:     func() time.Time { return f.now },
	})
	return f
}

func radioSurvey() validate.SurveyInput {
	return validate.SurveyInput{
		Title:       "Lunch",
		Description: "Where should we eat?",
		Questions: []validate.QuestionInput{
			{Type: model.Radio, Text: "Place", Options: []string{"A", "B"}, Required: true},
		},
	}
}

func subscription() *model.PushSubscription {
	return &model.PushSubscription{
		Endpoint: "https://push.example.com/send/abc",
		Keys:     model.PushKey{P256dh: "BPk", Auth: "xyz"},
	}
}

func requireCode(t *testing.T, code Code, err error) *Error {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, code, e.Code, "error: %v", err)
	return e
}

// survey creates a radio survey and returns its ids and first question id.
func (f *fixture) survey(t *testing.T) (CreatedSurvey, string) {
	t.Helper()
	created, err := f.svc.CreateSurvey(context.Background(), source, radioSurvey())
	require.NoError(t, err)
	pub, err := f.svc.PublicSurvey(context.Background(), created.SurveyID)
	require.NoError(t, err)
	return created, pub.Questions[0].ID
}

// respond submits an answer and returns the response token and stored response id.
func (f *fixture) respond(t *testing.T, surveyID, questionID, value string, sub *model.PushSubscription) (string, string) {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.SubmitResponse(ctx, source, surveyID, ResponseInput{
		Answers:          []model.Answer{{QuestionID: questionID, Value: model.StringAnswer(value)}},
		PushSubscription: sub,
	})
	require.NoError(t, err)
	r, err := f.store.ResponseByToken(ctx, res.ResponseToken)
	require.NoError(t, err)
	return res.ResponseToken, r.ID
}

func TestCreateSurvey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.CreateSurvey(ctx, source, validate.SurveyInput{
		Title:       "  <b>Lunch</b> ",
		Description: "Where?",
		Questions: []validate.QuestionInput{
			{Type: model.Radio, Text: "Place", Options: []string{"A", " ", "B"}, Required: true},
			{Type: model.Text, Text: "Why", Options: []string{"ignored"}},
		},
	})
	require.NoError(t, err)

	assert.True(t, token.ValidSurveyID(created.SurveyID))
	assert.True(t, token.ValidAdminToken(created.AdminToken))
	assert.Equal(t, "https://mellowq.test/survey/"+created.SurveyID, created.SurveyURL)
	assert.Equal(t, "https://mellowq.test/manage/"+created.AdminToken, created.AdminURL)

	stored, err := f.store.SurveyByID(ctx, created.SurveyID)
	require.NoError(t, err)
	assert.Equal(t, "bLunch/b", stored.Title)
	require.Len(t, stored.Questions, 2)
	assert.Equal(t, []string{"A", "B"}, stored.Questions[0].Options)
	assert.Nil(t, stored.Questions[1].Options)
	assert.NotEqual(t, stored.Questions[0].ID, stored.Questions[1].ID)
	assert.Len(t, stored.Questions[0].ID, token.QuestionIDLen)
	assert.Equal(t, f.now, stored.CreatedAt)
}

func TestCreateSurvey_ReportsEveryViolation(t *testing.T) {
	f := newFixture(t, nil)

	questions := make([]validate.QuestionInput, 60)
	for i := range questions {
		questions[i] = validate.QuestionInput{Type: model.Text, Text: fmt.Sprintf("Q%d", i)}
	}
	questions[3].Type = "slider"

	_, err := f.svc.CreateSurvey(context.Background(), source, validate.SurveyInput{
		Title:       "",
		Description: "fine",
		Questions:   questions,
	})
	e := requireCode(t, ValidationError, err)
	assert.Len(t, e.Details, 3)
}

func TestCreateSurvey_RateLimitComesFirst(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), nil)
	f := newFixture(t, limiter)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.CreateSurvey(ctx, source, radioSurvey())
		require.NoError(t, err)
	}
	// even an invalid payload is rejected by the limiter first
	_, err := f.svc.CreateSurvey(ctx, source, validate.SurveyInput{})
	requireCode(t, RateLimit, err)

	_, err = f.svc.CreateSurvey(ctx, "198.51.100.7", radioSurvey())
	assert.NoError(t, err)
}

type fixedTokens struct {
	token.Generator
	surveyIDs []string
	next      int
}

func (g *fixedTokens) SurveyID() string {
	id := g.surveyIDs[g.next%len(g.surveyIDs)]
	g.next++
	return id
}

func TestCreateSurvey_RetriesOnceOnCollision(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tokens := &fixedTokens{Generator: token.Random, surveyIDs: []string{"AAAAAAAAAA", "AAAAAAAAAA", "BBBBBBBBBB"}}
	f.svc.tokens = tokens

	first, err := f.svc.CreateSurvey(ctx, source, radioSurvey())
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAAAA", first.SurveyID)

	second, err := f.svc.CreateSurvey(ctx, source, radioSurvey())
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBBBB", second.SurveyID)

	tokens.surveyIDs, tokens.next = []string{"AAAAAAAAAA"}, 0
	_, err = f.svc.CreateSurvey(ctx, source, radioSurvey())
	requireCode(t, Conflict, err)
}

func TestPublicSurvey_NeverExposesAdminToken(t *testing.T) {
	f := newFixture(t, nil)
	created, _ := f.survey(t)

	pub, err := f.svc.PublicSurvey(context.Background(), created.SurveyID)
	require.NoError(t, err)

	body, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(body), created.AdminToken)
	assert.NotContains(t, string(body), "adminToken")
}

func TestPublicSurvey_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.PublicSurvey(ctx, "short")
	requireCode(t, InvalidID, err)
	_, err = f.svc.PublicSurvey(ctx, "ZZZZZZZZZZ")
	requireCode(t, NotFound, err)
}

func TestSubmitResponse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)

	res, err := f.svc.SubmitResponse(ctx, source, created.SurveyID, ResponseInput{
		Answers: []model.Answer{{QuestionID: q1, Value: model.StringAnswer("A")}},
	})
	require.NoError(t, err)
	assert.True(t, token.ValidResponseToken(res.ResponseToken))

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"responseToken":"`+res.ResponseToken+`"}`, string(body))

	r, err := f.store.ResponseByToken(ctx, res.ResponseToken)
	require.NoError(t, err)
	assert.Equal(t, created.SurveyID, r.SurveyID)
	assert.Len(t, r.AnonymousID, token.AnonymousIDLen)
	assert.Equal(t, f.now, r.SubmittedAt)
	assert.Nil(t, r.PushSubscription)
}

func TestSubmitResponse_InvalidOptionWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)

	_, err := f.svc.SubmitResponse(ctx, source, created.SurveyID, ResponseInput{
		Answers: []model.Answer{{QuestionID: q1, Value: model.StringAnswer("C")}},
	})
	e := requireCode(t, ValidationError, err)
	require.Len(t, e.Details, 1)
	assert.Contains(t, e.Details[0], `"C"`)

	list, err := f.store.ResponsesBySurvey(ctx, created.SurveyID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubmitResponse_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)

	_, err := f.svc.SubmitResponse(ctx, source, "bad id!", ResponseInput{})
	requireCode(t, InvalidID, err)

	_, err = f.svc.SubmitResponse(ctx, source, "ZZZZZZZZZZ", ResponseInput{})
	requireCode(t, NotFound, err)

	_, err = f.svc.SubmitResponse(ctx, source, created.SurveyID, ResponseInput{})
	requireCode(t, ValidationError, err)

	_, err = f.svc.SubmitResponse(ctx, source, created.SurveyID, ResponseInput{
		Answers:          []model.Answer{{QuestionID: q1, Value: model.StringAnswer("A")}},
		PushSubscription: &model.PushSubscription{Endpoint: "not a url"},
	})
	e := requireCode(t, ValidationError, err)
	assert.Len(t, e.Details, 3)
}

func TestSubmitResponse_SanitizesText(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.CreateSurvey(ctx, source, validate.SurveyInput{
		Title:       "Feedback",
		Description: "Tell us",
		Questions:   []validate.QuestionInput{{Type: model.Text, Text: "Comments"}},
	})
	require.NoError(t, err)
	pub, err := f.svc.PublicSurvey(ctx, created.SurveyID)
	require.NoError(t, err)

	responseToken, _ := f.respond(t, created.SurveyID, pub.Questions[0].ID, "  <script>hi</script>  ", nil)
	r, err := f.store.ResponseByToken(ctx, responseToken)
	require.NoError(t, err)
	require.Len(t, r.Answers, 1)
	assert.Equal(t, "scripthi/script", r.Answers[0].Value.Str)
}

func TestAdminView(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)
	other, otherQ := f.survey(t)

	f.respond(t, created.SurveyID, q1, "A", nil)
	f.respond(t, other.SurveyID, otherQ, "B", nil)

	view, err := f.svc.AdminView(ctx, created.AdminToken)
	require.NoError(t, err)

	assert.Equal(t, created.SurveyID, view.Survey.ID)
	require.Len(t, view.Responses, 1, "only responses of this survey")
	assert.Equal(t, 1, view.Stats.TotalResponses)
	require.Len(t, view.Stats.QuestionsStats, 1)
	assert.Equal(t, map[string]int{"A": 1, "B": 0}, view.Stats.QuestionsStats[0].OptionCounts)
	assert.Equal(t, 1, view.Stats.QuestionsStats[0].TotalAnswers)

	body, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "responseToken")
	assert.NotContains(t, string(body), "adminToken")
}

func TestAdminView_UnknownAndMalformedTokensLookAlike(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AdminView(ctx, "nope")
	requireCode(t, NotFound, err)
	_, err = f.svc.AdminView(ctx, strings.Repeat("a", token.AdminTokenLen))
	requireCode(t, NotFound, err)
}

func TestComputeStats(t *testing.T) {
	questions := []model.Question{
		{ID: "r", Type: model.Radio, Options: []string{"A", "B"}},
		{ID: "c", Type: model.Checkbox, Options: []string{"X", "Y", "Z"}},
		{ID: "t", Type: model.Text},
	}
	responses := []model.Response{
		{Answers: []model.Answer{
			{QuestionID: "r", Value: model.StringAnswer("A")},
			{QuestionID: "c", Value: model.ListAnswer("X", "Y", "X")},
			{QuestionID: "t", Value: model.StringAnswer("great")},
		}},
		{Answers: []model.Answer{
			{QuestionID: "r", Value: model.StringAnswer("A")},
			{QuestionID: "c", Value: model.ListAnswer("Y")},
		}},
		{},
	}

	stats := computeStats(questions, responses)

	assert.Equal(t, 3, stats.TotalResponses)
	require.Len(t, stats.QuestionsStats, 3)
	assert.Equal(t, map[string]int{"A": 2, "B": 0}, stats.QuestionsStats[0].OptionCounts)
	assert.Equal(t, 2, stats.QuestionsStats[0].TotalAnswers)
	assert.Equal(t, map[string]int{"X": 1, "Y": 2, "Z": 0}, stats.QuestionsStats[1].OptionCounts)
	assert.Equal(t, 2, stats.QuestionsStats[1].TotalAnswers)
	assert.Nil(t, stats.QuestionsStats[2].OptionCounts)
	assert.Equal(t, 1, stats.QuestionsStats[2].TotalAnswers)
}

func TestFollowupDialogue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)
	responseToken, responseID := f.respond(t, created.SurveyID, q1, "A", subscription())

	longQuestion := strings.Repeat("why ", 40)
	fc, err := f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{
		ResponseID: responseID,
		Question:   longQuestion,
	})
	require.NoError(t, err)
	assert.True(t, fc.NotificationSent)
	require.Equal(t, 1, f.sender.count())
	msg := f.sender.sent[0].msg
	assert.Equal(t, "https://mellowq.test/followup/"+responseToken, msg.URL)
	assert.NotContains(t, msg.URL, responseID)
	assert.True(t, strings.HasSuffix(msg.Body, "..."))
	assert.Equal(t, 103, len([]rune(msg.Body)))

	thread, err := f.svc.Thread(ctx, responseToken)
	require.NoError(t, err)
	require.Len(t, thread.FollowupQuestions, 1)
	assert.Equal(t, model.Unanswered, thread.FollowupQuestions[0].Status)
	assert.Equal(t, created.SurveyID, thread.Survey.ID)

	f.now = f.now.Add(time.Hour)
	err = f.svc.AnswerFollowup(ctx, responseToken, FollowupAnswerInput{
		FollowupQuestionID: fc.FollowupQuestionID,
		Answer:             "first",
	})
	require.NoError(t, err)

	err = f.svc.AnswerFollowup(ctx, responseToken, FollowupAnswerInput{
		FollowupQuestionID: fc.FollowupQuestionID,
		Answer:             "second",
	})
	requireCode(t, AlreadyAnswered, err)

	view, err := f.svc.AdminView(ctx, created.AdminToken)
	require.NoError(t, err)
	require.Len(t, view.Responses, 1)
	require.Len(t, view.Responses[0].FollowupQuestions, 1)
	fq := view.Responses[0].FollowupQuestions[0]
	assert.Equal(t, model.Answered, fq.Status)
	require.NotNil(t, fq.Answer)
	assert.Equal(t, "first", *fq.Answer)
	require.NotNil(t, fq.AnsweredAt)
	assert.Equal(t, f.now, *fq.AnsweredAt)
}

func TestCreateFollowup_WithoutSubscriptionOrDelivery(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)

	_, plain := f.respond(t, created.SurveyID, q1, "A", nil)
	fc, err := f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{ResponseID: plain, Question: "Why?"})
	require.NoError(t, err)
	assert.False(t, fc.NotificationSent)
	assert.Zero(t, f.sender.count())

	f.sender.result = push.Result{Reason: "provider down"}
	_, subscribed := f.respond(t, created.SurveyID, q1, "B", subscription())
	fc, err = f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{ResponseID: subscribed, Question: "Why?"})
	require.NoError(t, err, "delivery failure never fails the creation")
	assert.False(t, fc.NotificationSent)

	_, err = f.store.FollowupByID(ctx, fc.FollowupQuestionID)
	assert.NoError(t, err, "question is stored regardless of delivery")
}

func TestCreateFollowup_GoneSubscriptionIsPruned(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)
	_, responseID := f.respond(t, created.SurveyID, q1, "A", subscription())

	f.sender.result = push.Result{Gone: true, Reason: "subscription expired"}
	fc, err := f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{ResponseID: responseID, Question: "Why?"})
	require.NoError(t, err)
	assert.False(t, fc.NotificationSent)

	r, err := f.store.ResponseByID(ctx, responseID)
	require.NoError(t, err)
	assert.Nil(t, r.PushSubscription)
}

func TestCreateFollowup_CrossTenant(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	surveyA, _ := f.survey(t)
	surveyB, qB := f.survey(t)
	_, responseOfB := f.respond(t, surveyB.SurveyID, qB, "A", nil)

	for _, responseID := range []string{responseOfB, uuid.NewString()} {
		_, err := f.svc.CreateFollowup(ctx, source, surveyA.AdminToken, FollowupInput{
			ResponseID: responseID,
			Question:   "Who are you?",
		})
		requireCode(t, NotFound, err)
	}

	list, err := f.store.FollowupsByResponses(ctx, responseOfB)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateFollowup_InputAndAuth(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)
	_, responseID := f.respond(t, created.SurveyID, q1, "A", nil)

	_, err := f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{ResponseID: "nope", Question: "x"})
	requireCode(t, InvalidInput, err)
	_, err = f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{ResponseID: responseID, Question: "  "})
	requireCode(t, InvalidInput, err)
	_, err = f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{
		ResponseID: responseID,
		Question:   strings.Repeat("x", validate.MaxFollowupText+1),
	})
	requireCode(t, InvalidInput, err)

	_, err = f.svc.CreateFollowup(ctx, source, "short", FollowupInput{ResponseID: responseID, Question: "x"})
	requireCode(t, Unauthorized, err)
	_, err = f.svc.CreateFollowup(ctx, source, strings.Repeat("a", token.AdminTokenLen), FollowupInput{ResponseID: responseID, Question: "x"})
	requireCode(t, Unauthorized, err)
}

func TestFollowupText_LengthExcludesSurroundingSpace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)
	responseToken, responseID := f.respond(t, created.SurveyID, q1, "A", nil)

	question := strings.Repeat("q", validate.MaxFollowupText)
	fc, err := f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{
		ResponseID: responseID,
		Question:   "  " + question + "\n",
	})
	require.NoError(t, err)

	answer := strings.Repeat("a", validate.MaxFollowupReply)
	err = f.svc.AnswerFollowup(ctx, responseToken, FollowupAnswerInput{
		FollowupQuestionID: fc.FollowupQuestionID,
		Answer:             "\t" + answer + "  ",
	})
	require.NoError(t, err)

	stored, err := f.store.FollowupByID(ctx, fc.FollowupQuestionID)
	require.NoError(t, err)
	assert.Equal(t, question, stored.Question)
	require.NotNil(t, stored.Answer)
	assert.Equal(t, answer, *stored.Answer)
}

func TestAnswerFollowup_OtherResponseCannotAnswer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)
	_, owner := f.respond(t, created.SurveyID, q1, "A", nil)
	intruderToken, _ := f.respond(t, created.SurveyID, q1, "B", nil)

	fc, err := f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{ResponseID: owner, Question: "Why?"})
	require.NoError(t, err)

	err = f.svc.AnswerFollowup(ctx, intruderToken, FollowupAnswerInput{FollowupQuestionID: fc.FollowupQuestionID, Answer: "hi"})
	requireCode(t, NotFound, err)

	err = f.svc.AnswerFollowup(ctx, strings.Repeat("z", token.ResponseTokenLen), FollowupAnswerInput{FollowupQuestionID: fc.FollowupQuestionID, Answer: "hi"})
	requireCode(t, NotFound, err)

	err = f.svc.AnswerFollowup(ctx, intruderToken, FollowupAnswerInput{FollowupQuestionID: "x", Answer: "hi"})
	requireCode(t, InvalidInput, err)
	err = f.svc.AnswerFollowup(ctx, intruderToken, FollowupAnswerInput{FollowupQuestionID: fc.FollowupQuestionID, Answer: ""})
	requireCode(t, InvalidInput, err)
}

func TestSendReminder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)
	responseToken, responseID := f.respond(t, created.SurveyID, q1, "A", subscription())
	fc, err := f.svc.CreateFollowup(ctx, source, created.AdminToken, FollowupInput{ResponseID: responseID, Question: "Why?"})
	require.NoError(t, err)

	f.sender.result = push.Result{Reason: "provider down"}
	err = f.svc.SendReminder(ctx, source, created.AdminToken, ReminderInput{FollowupQuestionID: fc.FollowupQuestionID})
	requireCode(t, DeliveryFailed, err)
	fq, err := f.store.FollowupByID(ctx, fc.FollowupQuestionID)
	require.NoError(t, err)
	assert.Zero(t, fq.ReminderCount, "failed delivery is not counted")

	f.sender.result = push.Result{Delivered: true}
	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.svc.SendReminder(ctx, source, created.AdminToken, ReminderInput{FollowupQuestionID: fc.FollowupQuestionID}))
	fq, err = f.store.FollowupByID(ctx, fc.FollowupQuestionID)
	require.NoError(t, err)
	assert.Equal(t, 1, fq.ReminderCount)
	require.NotNil(t, fq.LastReminderSentAt)
	assert.Equal(t, f.now, *fq.LastReminderSentAt)

	require.NoError(t, f.svc.AnswerFollowup(ctx, responseToken, FollowupAnswerInput{FollowupQuestionID: fc.FollowupQuestionID, Answer: "ok"}))
	err = f.svc.SendReminder(ctx, source, created.AdminToken, ReminderInput{FollowupQuestionID: fc.FollowupQuestionID})
	requireCode(t, AlreadyAnswered, err)
}

func TestSendReminder_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	surveyA, qA := f.survey(t)
	surveyB, _ := f.survey(t)
	_, plain := f.respond(t, surveyA.SurveyID, qA, "A", nil)
	fc, err := f.svc.CreateFollowup(ctx, source, surveyA.AdminToken, FollowupInput{ResponseID: plain, Question: "Why?"})
	require.NoError(t, err)

	err = f.svc.SendReminder(ctx, source, surveyA.AdminToken, ReminderInput{FollowupQuestionID: fc.FollowupQuestionID})
	requireCode(t, NotFound, err)

	err = f.svc.SendReminder(ctx, source, surveyB.AdminToken, ReminderInput{FollowupQuestionID: fc.FollowupQuestionID})
	requireCode(t, Forbidden, err)

	err = f.svc.SendReminder(ctx, source, surveyA.AdminToken, ReminderInput{FollowupQuestionID: uuid.NewString()})
	requireCode(t, NotFound, err)

	err = f.svc.SendReminder(ctx, source, surveyA.AdminToken, ReminderInput{})
	requireCode(t, InvalidInput, err)

	err = f.svc.SendReminder(ctx, source, "short", ReminderInput{FollowupQuestionID: fc.FollowupQuestionID})
	requireCode(t, NotFound, err)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, q1 := f.survey(t)
	responseToken, responseID := f.respond(t, created.SurveyID, q1, "A", nil)

	require.NoError(t, f.svc.Subscribe(ctx, responseToken, *subscription()))
	r, err := f.store.ResponseByID(ctx, responseID)
	require.NoError(t, err)
	assert.Equal(t, subscription(), r.PushSubscription)

	err = f.svc.Subscribe(ctx, responseToken, model.PushSubscription{})
	requireCode(t, ValidationError, err)

	err = f.svc.Subscribe(ctx, strings.Repeat("q", token.ResponseTokenLen), *subscription())
	requireCode(t, NotFound, err)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, NotFound, CodeOf(fmt.Errorf("wrapped: %w", fail(NotFound, "x"))))
	assert.Equal(t, ServerError, CodeOf(fmt.Errorf("plain")))
}
