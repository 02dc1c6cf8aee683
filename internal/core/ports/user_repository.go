package ports

import (
	"context"
	"time"

	"github.com/mentalcompass/platform/internal/core/domain"
)

// UserRepository defines the interface for identity persistence.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByIDs returns the users that exist among ids, keyed by id.
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	// UpdateProfile overwrites name, description and photo and returns the
	// updated user, or domain.ErrUserNotFound.
	UpdateProfile(ctx context.Context, id string, input UserProfileInput, at time.Time) (*domain.User, error)
}
