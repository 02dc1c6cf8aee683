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

const collectionBlogPosts = "blog_posts"

type BlogRepository struct {
	col *mongo.Collection
}

func NewBlogRepository(db *mongo.Database) *BlogRepository {
	return &BlogRepository{col: db.Collection(collectionBlogPosts)}
}

func (r *BlogRepository) Create(ctx context.Context, p *domain.BlogPost) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert blog post: %w", err)
	}
	return nil
}

func (r *BlogRepository) FindBySlug(ctx context.Context, slug string) (*domain.BlogPost, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.BlogPost
	if err := r.col.FindOne(ctx, bson.M{"slug": slug}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBlogPostNotFound
		}
		return nil, fmt.Errorf("find blog post: %w", err)
	}
	return &p, nil
}

func (r *BlogRepository) ListPublished(ctx context.Context) ([]*domain.BlogPost, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"published": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	out := make([]*domain.BlogPost, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode blog posts: %w", err)
	}
	return out, nil
}

func (r *BlogRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "published", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}
