package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mentalcompass/platform/internal/core/domain"
)

const collectionAssessments = "assessments"

// AssessmentRepository implements ports.AssessmentRepository using MongoDB.
// One document per user: {_id, user_id, data: {messages: [...]}, updated_at}.
type AssessmentRepository struct {
	col *mongo.Collection
}

func NewAssessmentRepository(db *mongo.Database) *AssessmentRepository {
	return &AssessmentRepository{col: db.Collection(collectionAssessments)}
}

// AppendTurns pushes turns onto the user's assessment in a single upsert, so
// concurrent appends never overwrite each other.
func (r *AssessmentRepository) AppendTurns(ctx context.Context, userID string, turns []domain.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"user_id": userID}
	update := appendTurnsUpdate(turns, uuid.NewString(), time.Now().UTC())
	if _, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("append assessment: %w", err)
	}
	return nil
}

func appendTurnsUpdate(turns []domain.ChatTurn, newID string, at time.Time) bson.M {
	return bson.M{
		"$push":        bson.M{"data.messages": bson.M{"$each": turns}},
		"$set":         bson.M{"updated_at": at},
		"$setOnInsert": bson.M{"_id": newID},
	}
}

func (r *AssessmentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
