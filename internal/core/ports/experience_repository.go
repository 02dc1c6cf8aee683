package ports

import (
	"context"

	"github.com/mentalcompass/platform/internal/core/domain"
)

// ExperienceRepository persists experience posts and their public responses.
type ExperienceRepository interface {
	CreatePost(ctx context.Context, p *domain.ExperiencePost) error
	FindPost(ctx context.Context, id string) (*domain.ExperiencePost, error)
	// ListPublished returns published posts, newest first.
	ListPublished(ctx context.Context) ([]*domain.ExperiencePost, error)
	CreateResponse(ctx context.Context, r *domain.ExperiencePostResponse) error
	// ListResponses returns the responses to a post, oldest first.
	ListResponses(ctx context.Context, postID string) ([]*domain.ExperiencePostResponse, error)
}
