package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mentalcompass/platform/internal/core/domain"
)

const (
	collectionSessions = "chat_sessions"
	collectionMessages = "messages"

	activePostSessionIndex = "uniq_active_post_specialist"
)

// ChatRepository implements ports.ChatRepository using MongoDB.
//
// At most one ACTIVE session per (experience post, specialist) is enforced by
// a unique partial index; inserts that violate it surface as
// domain.ErrSessionExists.
type ChatRepository struct {
	client    *mongo.Client
	sessions  *mongo.Collection
	messages  *mongo.Collection
	responses *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{
		client:    db.Client(),
		sessions:  db.Collection(collectionSessions),
		messages:  db.Collection(collectionMessages),
		responses: db.Collection(collectionResponses),
	}
}

func (r *ChatRepository) CreateSession(ctx context.Context, s *domain.ChatSession) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.sessions.InsertOne(ctx, s); err != nil {
		return sessionInsertError(err)
	}
	return nil
}

func (r *ChatRepository) CreateSessionWithMessage(ctx context.Context, s *domain.ChatSession, first *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := withTransaction(ctx, r.client, func(sc mongo.SessionContext) error {
		if _, err := r.sessions.InsertOne(sc, s); err != nil {
			return err
		}
		_, err := r.messages.InsertOne(sc, first)
		return err
	})
	if err != nil {
		return sessionInsertError(err)
	}
	return nil
}

func (r *ChatRepository) CreateReply(ctx context.Context, resp *domain.ExperiencePostResponse, s *domain.ChatSession, first *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := withTransaction(ctx, r.client, func(sc mongo.SessionContext) error {
		if _, err := r.sessions.InsertOne(sc, s); err != nil {
			return err
		}
		if _, err := r.responses.InsertOne(sc, resp); err != nil {
			return err
		}
		_, err := r.messages.InsertOne(sc, first)
		return err
	})
	if err != nil {
		return sessionInsertError(err)
	}
	return nil
}

func sessionInsertError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrSessionExists
	}
	return fmt.Errorf("insert session: %w", err)
}

func (r *ChatRepository) FindSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	return r.findSession(ctx, bson.M{"_id": id})
}

func (r *ChatRepository) FindActiveByPostAndSpecialist(ctx context.Context, postID, specialistID string) (*domain.ChatSession, error) {
	return r.findSession(ctx, bson.M{
		"experience_post_id": postID,
		"specialist_id":      specialistID,
		"status":             domain.SessionActive,
	})
}

func (r *ChatRepository) findSession(ctx context.Context, filter bson.M) (*domain.ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s domain.ChatSession
	if err := r.sessions.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

func (r *ChatRepository) ListSessionsByUser(ctx context.Context, userID string) ([]*domain.ChatSession, error) {
	return r.listSessions(ctx, bson.M{"user_id": userID})
}

func (r *ChatRepository) ListSessionsBySpecialist(ctx context.Context, specialistID string) ([]*domain.ChatSession, error) {
	return r.listSessions(ctx, bson.M{"specialist_id": specialistID})
}

func (r *ChatRepository) listSessions(ctx context.Context, filter bson.M) ([]*domain.ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.sessions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]*domain.ChatSession, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return out, nil
}

func (r *ChatRepository) CountActiveBySpecialist(ctx context.Context, specialistIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(specialistIDs))
	if len(specialistIDs) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":        domain.SessionActive,
			"specialist_id": bson.M{"$in": specialistIDs},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$specialist_id", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.sessions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count active sessions: %w", err)
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode session counts: %w", err)
	}
	for _, row := range rows {
		out[row.ID] = row.Count
	}
	return out, nil
}

func (r *ChatRepository) CloseSession(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": domain.SessionActive}
	update := bson.M{"$set": bson.M{
		"status":     domain.SessionClosed,
		"closed_at":  at,
		"updated_at": at,
	}}
	res, err := r.sessions.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.inactiveReason(ctx, id)
	}
	return nil
}

// inactiveReason tells a missing session apart from one that is no longer ACTIVE.
func (r *ChatRepository) inactiveReason(ctx context.Context, id string) error {
	n, err := r.sessions.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return domain.ErrSessionClosed
}

// AppendMessage reserves the next sequence number with an atomic increment on
// the ACTIVE session, then stores the message under it. A failed insert leaves
// a gap in the sequence but never reorders messages.
func (r *ChatRepository) AppendMessage(ctx context.Context, m *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": m.SessionID, "status": domain.SessionActive}
	update := bson.M{
		"$inc": bson.M{"message_seq": 1},
		"$set": bson.M{"updated_at": m.CreatedAt},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"message_seq": 1})

	var seq struct {
		MessageSeq int64 `bson:"message_seq"`
	}
	err := r.sessions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&seq)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.inactiveReason(ctx, m.SessionID)
	}
	if err != nil {
		return fmt.Errorf("allocate message seq: %w", err)
	}

	m.Seq = seq.MessageSeq
	if _, err := r.messages.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *ChatRepository) ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := r.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]*domain.Message, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return out, nil
}

func (r *ChatRepository) FindMessage(ctx context.Context, id string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m domain.Message
	if err := r.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return &m, nil
}

// EnsureIndexes creates the session and message indexes, including the unique
// partial index that backs the one-active-session rule.
func (r *ChatRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "experience_post_id", Value: 1}, {Key: "specialist_id", Value: 1}},
			Options: options.Index().
				SetName(activePostSessionIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"status":             domain.SessionActive,
					"experience_post_id": bson.M{"$exists": true},
				}),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "specialist_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("session indexes: %w", err)
	}

	_, err = r.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}
	return nil
}
