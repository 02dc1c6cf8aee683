package ports

import (
	"context"
	"time"
)

// PostView is the anonymous read model of an experience post. It never carries
// the author's identity; IsOwner is computed against the caller.
type PostView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Published bool      `json:"published"`
	IsOwner   bool      `json:"is_owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResponderView is the public identity of a responding specialist.
type ResponderView struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	ProfilePhoto string `json:"profile_photo,omitempty"`
	Verified     bool   `json:"verified"`
}

// ResponseView is a public specialist response.
type ResponseView struct {
	ID               string        `json:"id"`
	ExperiencePostID string        `json:"experience_post_id"`
	Content          string        `json:"content"`
	Specialist       ResponderView `json:"specialist"`
	CreatedAt        time.Time     `json:"created_at"`
}

// CreatePostInput carries a new anonymous post.
type CreatePostInput struct {
	UserID    string
	Title     string
	Content   string
	Published *bool
}

// CreateResponseInput carries a public response from a specialist.
type CreateResponseInput struct {
	PostID  string
	UserID  string
	Content string
}

type ExperienceService interface {
	CreatePost(ctx context.Context, input CreatePostInput) (*PostView, error)
	ListPosts(ctx context.Context, callerID string) ([]PostView, error)
	ListResponses(ctx context.Context, postID string) ([]ResponseView, error)
	CreateResponse(ctx context.Context, input CreateResponseInput) (*ResponseView, error)
}
