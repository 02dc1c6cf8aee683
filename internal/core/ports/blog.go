package ports

import (
	"context"

	"github.com/mentalcompass/platform/internal/core/domain"
)

type BlogRepository interface {
	Create(ctx context.Context, p *domain.BlogPost) error
	FindBySlug(ctx context.Context, slug string) (*domain.BlogPost, error)
	// ListPublished returns published posts, newest first.
	ListPublished(ctx context.Context) ([]*domain.BlogPost, error)
}

// PublishInput carries a new blog post.
type PublishInput struct {
	UserID    string
	Title     string
	Content   string
	Published *bool
}

type BlogService interface {
	Publish(ctx context.Context, input PublishInput) (*domain.BlogPost, error)
	Get(ctx context.Context, slug string) (*domain.BlogPost, error)
	List(ctx context.Context) ([]*domain.BlogPost, error)
}
