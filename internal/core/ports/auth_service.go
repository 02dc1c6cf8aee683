package ports

import (
	"context"

	"github.com/mentalcompass/platform/internal/core/domain"
)

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// UserProfileInput replaces the editable part of a user's own profile.
// ProfilePhoto is a URL; empty clears it.
type UserProfileInput struct {
	Name         string
	Description  string
	ProfilePhoto string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, input UserProfileInput) (*domain.User, error)
}
