package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/kentoooo/mellowq/log"
	"github.com/kentoooo/mellowq/model"
)

const defaultMongoDatabase = "mellowq"

type MongoStore struct {
	client    *mongo.Client
	surveys   *mongo.Collection
	responses *mongo.Collection
	followups *mongo.Collection
}

type surveyDoc struct {
	ID          string           `bson:"_id"`
	AdminToken  string           `bson:"adminToken"`
	Title       string           `bson:"title"`
	Description string           `bson:"description"`
	Questions   []model.Question `bson:"questions"`
	CreatedAt   time.Time        `bson:"createdAt"`
	ExpiresAt   *time.Time       `bson:"expiresAt,omitempty"`
}

// answerDoc holds a string for radio and text answers and an array for checkboxes.
type answerDoc struct {
	QuestionID string `bson:"questionId"`
	Value      any    `bson:"value"`
}

type responseDoc struct {
	ID               string                  `bson:"_id"`
	SurveyID         string                  `bson:"surveyId"`
	AnonymousID      string                  `bson:"anonymousId"`
	ResponseToken    string                  `bson:"responseToken"`
	Answers          []answerDoc             `bson:"answers"`
	PushSubscription *model.PushSubscription `bson:"pushSubscription,omitempty"`
	SubmittedAt      time.Time               `bson:"submittedAt"`
}

type followupDoc struct {
	ID                 string     `bson:"_id"`
	ResponseID         string     `bson:"responseId"`
	Question           string     `bson:"question"`
	Answer             *string    `bson:"answer,omitempty"`
	CreatedAt          time.Time  `bson:"createdAt"`
	AnsweredAt         *time.Time `bson:"answeredAt,omitempty"`
	LastReminderSentAt *time.Time `bson:"lastReminderSentAt,omitempty"`
	ReminderCount      int        `bson:"reminderCount"`
}

// OpenMongo connects to uri and makes sure the collection indexes exist.
// The database is the one named in the URI path, "mellowq" when there is none.
func OpenMongo(ctx context.Context, uri string) (*MongoStore, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("db.mongo.uri: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(10)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("db.mongo.connect: %w", err)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("db.mongo.ping: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:    client,
		surveys:   db.Collection("surveys"),
		responses: db.Collection("responses"),
		followups: db.Collection("followup_questions"),
	}
	if err = s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Debugf("db.mongo: connected to database %s", dbName)
	return s, nil
}

// ensureIndexes is idempotent: creating an existing index is a no-op.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.surveys: {
			{Keys: bson.D{{Key: "adminToken", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		s.responses: {
			{Keys: bson.D{{Key: "surveyId", Value: 1}}},
			{Keys: bson.D{{Key: "responseToken", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "anonymousId", Value: 1}}},
			{Keys: bson.D{{Key: "submittedAt", Value: -1}}},
		},
		s.followups: {
			{Keys: bson.D{{Key: "responseId", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("db.mongo.indexes.%s: %w", coll.Name(), err)
		}
	}
	return nil
}

func mongoInsertErr(code string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", code, ErrConflict)
	}
	return fmt.Errorf("%s: %w", code, err)
}

func mongoLookupErr(code string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", code, err)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func (d surveyDoc) model() model.Survey {
	return model.Survey{
		ID:          d.ID,
		AdminToken:  d.AdminToken,
		Title:       d.Title,
		Description: d.Description,
		Questions:   d.Questions,
		CreatedAt:   d.CreatedAt.UTC(),
		ExpiresAt:   utcPtr(d.ExpiresAt),
	}
}

func answerDocs(answers []model.Answer) []answerDoc {
	docs := make([]answerDoc, 0, len(answers))
	for _, a := range answers {
		doc := answerDoc{QuestionID: a.QuestionID}
		switch a.Value.Kind {
		case model.StringValue:
			doc.Value = a.Value.Str
		case model.ListValue:
			doc.Value = append([]string{}, a.Value.List...)
		}
		docs = append(docs, doc)
	}
	return docs
}

func answerValue(v any) model.AnswerValue {
	switch v := v.(type) {
	case nil:
		return model.AnswerValue{}
	case string:
		return model.StringAnswer(v)
	case primitive.A:
		list := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return model.AnswerValue{Kind: model.InvalidValue}
			}
			list = append(list, s)
		}
		return model.ListAnswer(list...)
	}
	return model.AnswerValue{Kind: model.InvalidValue}
}

func (d responseDoc) model() model.Response {
	answers := make([]model.Answer, 0, len(d.Answers))
	for _, a := range d.Answers {
		answers = append(answers, model.Answer{QuestionID: a.QuestionID, Value: answerValue(a.Value)})
	}
	return model.Response{
		ID:               d.ID,
		SurveyID:         d.SurveyID,
		AnonymousID:      d.AnonymousID,
		ResponseToken:    d.ResponseToken,
		Answers:          answers,
		PushSubscription: d.PushSubscription,
		SubmittedAt:      d.SubmittedAt.UTC(),
	}
}

func (d followupDoc) model() model.FollowupQuestion {
	return model.FollowupQuestion{
		ID:                 d.ID,
		ResponseID:         d.ResponseID,
		Question:           d.Question,
		Answer:             d.Answer,
		CreatedAt:          d.CreatedAt.UTC(),
		AnsweredAt:         utcPtr(d.AnsweredAt),
		LastReminderSentAt: utcPtr(d.LastReminderSentAt),
		ReminderCount:      d.ReminderCount,
	}
}

func (s *MongoStore) CreateSurvey(ctx context.Context, survey model.Survey) error {
	_, err := s.surveys.InsertOne(ctx, surveyDoc{
		ID:          survey.ID,
		AdminToken:  survey.AdminToken,
		Title:       survey.Title,
		Description: survey.Description,
		Questions:   survey.Questions,
		CreatedAt:   survey.CreatedAt.UTC(),
		ExpiresAt:   utcPtr(survey.ExpiresAt),
	})
	if err != nil {
		return mongoInsertErr("db.insert_survey", err)
	}
	return nil
}

func (s *MongoStore) findSurvey(ctx context.Context, code string, filter bson.D) (model.Survey, error) {
	var doc surveyDoc
	if err := s.surveys.FindOne(ctx, filter).Decode(&doc); err != nil {
		return model.Survey{}, mongoLookupErr(code, err)
	}
	return doc.model(), nil
}

func (s *MongoStore) SurveyByID(ctx context.Context, id string) (model.Survey, error) {
	return s.findSurvey(ctx, "db.get_survey", bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) SurveyByAdminToken(ctx context.Context, adminToken string) (model.Survey, error) {
	return s.findSurvey(ctx, "db.get_survey_by_admin_token", bson.D{{Key: "adminToken", Value: adminToken}})
}

func (s *MongoStore) CreateResponse(ctx context.Context, r *model.Response) error {
	id := uuid.NewString()
	_, err := s.responses.InsertOne(ctx, responseDoc{
		ID:               id,
		SurveyID:         r.SurveyID,
		AnonymousID:      r.AnonymousID,
		ResponseToken:    r.ResponseToken,
		Answers:          answerDocs(r.Answers),
		PushSubscription: r.PushSubscription,
		SubmittedAt:      r.SubmittedAt.UTC(),
	})
	if err != nil {
		return mongoInsertErr("db.insert_response", err)
	}
	r.ID = id
	return nil
}

func (s *MongoStore) findResponse(ctx context.Context, code string, filter bson.D) (model.Response, error) {
	var doc responseDoc
	if err := s.responses.FindOne(ctx, filter).Decode(&doc); err != nil {
		return model.Response{}, mongoLookupErr(code, err)
	}
	return doc.model(), nil
}

func (s *MongoStore) ResponseByID(ctx context.Context, id string) (model.Response, error) {
	return s.findResponse(ctx, "db.get_response", bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) ResponseByToken(ctx context.Context, responseToken string) (model.Response, error) {
	return s.findResponse(ctx, "db.get_response_by_token", bson.D{{Key: "responseToken", Value: responseToken}})
}

func (s *MongoStore) ResponsesBySurvey(ctx context.Context, surveyID string) ([]model.Response, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.responses.Find(ctx, bson.D{{Key: "surveyId", Value: surveyID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("db.get_responses: %w", err)
	}
	var docs []responseDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db.get_responses.decode: %w", err)
	}
	responses := make([]model.Response, 0, len(docs))
	for _, d := range docs {
		responses = append(responses, d.model())
	}
	return responses, nil
}

func (s *MongoStore) SetPushSubscription(ctx context.Context, responseID string, sub *model.PushSubscription) error {
	update := bson.D{{Key: "$unset", Value: bson.D{{Key: "pushSubscription", Value: ""}}}}
	if sub != nil {
		update = bson.D{{Key: "$set", Value: bson.D{{Key: "pushSubscription", Value: sub}}}}
	}
	res, err := s.responses.UpdateOne(ctx, bson.D{{Key: "_id", Value: responseID}}, update)
	if err != nil {
		return fmt.Errorf("db.update_push_subscription: %w", err)
	}
	if res.MatchedCount < 1 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) CreateFollowup(ctx context.Context, f *model.FollowupQuestion) error {
	id := uuid.NewString()
	_, err := s.followups.InsertOne(ctx, followupDoc{
		ID:         id,
		ResponseID: f.ResponseID,
		Question:   f.Question,
		CreatedAt:  f.CreatedAt.UTC(),
	})
	if err != nil {
		return mongoInsertErr("db.insert_followup", err)
	}
	f.ID = id
	return nil
}

func (s *MongoStore) FollowupByID(ctx context.Context, id string) (model.FollowupQuestion, error) {
	var doc followupDoc
	if err := s.followups.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		return model.FollowupQuestion{}, mongoLookupErr("db.get_followup", err)
	}
	return doc.model(), nil
}

func (s *MongoStore) FollowupsByResponses(ctx context.Context, responseIDs ...string) ([]model.FollowupQuestion, error) {
	followups := []model.FollowupQuestion{}
	if len(responseIDs) == 0 {
		return followups, nil
	}
	filter := bson.D{{Key: "responseId", Value: bson.D{{Key: "$in", Value: responseIDs}}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.followups.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("db.get_followups: %w", err)
	}
	var docs []followupDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db.get_followups.decode: %w", err)
	}
	for _, d := range docs {
		followups = append(followups, d.model())
	}
	return followups, nil
}

// settled tells a missing follow-up apart from an answered one after a
// conditional update matched no document.
func (s *MongoStore) settled(ctx context.Context, code string, filter bson.D) error {
	var doc followupDoc
	err := s.followups.FindOne(ctx, filter).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("%s: %w", code, err)
	case doc.Answer != nil:
		return ErrAlreadyAnswered
	}
	return fmt.Errorf("%s: conditional update matched no document", code)
}

func (s *MongoStore) AnswerFollowup(ctx context.Context, id, responseID, answer string, at time.Time) error {
	owned := bson.D{{Key: "_id", Value: id}, {Key: "responseId", Value: responseID}}
	filter := append(owned, bson.E{Key: "answer", Value: bson.D{{Key: "$exists", Value: false}}})
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "answer", Value: answer},
		{Key: "answeredAt", Value: at.UTC()},
	}}}
	res, err := s.followups.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db.answer_followup: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return s.settled(ctx, "db.answer_followup.verify", owned)
}

func (s *MongoStore) RecordReminder(ctx context.Context, id string, at time.Time) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "answer", Value: bson.D{{Key: "$exists", Value: false}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "lastReminderSentAt", Value: at.UTC()}}},
		{Key: "$inc", Value: bson.D{{Key: "reminderCount", Value: 1}}},
	}
	res, err := s.followups.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db.record_reminder: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return s.settled(ctx, "db.record_reminder.verify", bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
