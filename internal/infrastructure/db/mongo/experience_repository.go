package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mentalcompass/platform/internal/core/domain"
)

const (
	collectionPosts     = "experience_posts"
	collectionResponses = "experience_post_responses"
)

// ExperienceRepository implements ports.ExperienceRepository using MongoDB.
type ExperienceRepository struct {
	posts     *mongo.Collection
	responses *mongo.Collection
}

func NewExperienceRepository(db *mongo.Database) *ExperienceRepository {
	return &ExperienceRepository{
		posts:     db.Collection(collectionPosts),
		responses: db.Collection(collectionResponses),
	}
}

func (r *ExperienceRepository) CreatePost(ctx context.Context, p *domain.ExperiencePost) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.posts.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *ExperienceRepository) FindPost(ctx context.Context, id string) (*domain.ExperiencePost, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.ExperiencePost
	if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &p, nil
}

func (r *ExperienceRepository) ListPublished(ctx context.Context) ([]*domain.ExperiencePost, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.posts.Find(ctx, bson.M{"published": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	out := make([]*domain.ExperiencePost, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return out, nil
}

func (r *ExperienceRepository) CreateResponse(ctx context.Context, resp *domain.ExperiencePostResponse) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.responses.InsertOne(ctx, resp); err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (r *ExperienceRepository) ListResponses(ctx context.Context, postID string) ([]*domain.ExperiencePostResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.responses.Find(ctx, bson.M{"experience_post_id": postID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	out := make([]*domain.ExperiencePostResponse, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return out, nil
}

func (r *ExperienceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	if _, err := r.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "published", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("post indexes: %w", err)
	}
	if _, err := r.responses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "experience_post_id", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("response indexes: %w", err)
	}
	return nil
}
