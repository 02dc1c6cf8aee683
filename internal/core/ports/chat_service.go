package ports

import (
	"context"
	"time"

	"github.com/mentalcompass/platform/internal/core/domain"
)

// SessionView is a chat session as seen by one of its parties. UserID is only
// populated for the owner; the specialist side sees AnonymousUserID instead.
type SessionView struct {
	ID               string               `json:"id"`
	UserID           string               `json:"user_id,omitempty"`
	SpecialistID     *string              `json:"specialist_id"`
	ExperiencePostID *string              `json:"experience_post_id,omitempty"`
	AnonymousUserID  *string              `json:"anonymous_user_id"`
	Status           domain.SessionStatus `json:"status"`
	Role             domain.SenderRole    `json:"role"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// MessageView is a message stripped of sender identity.
type MessageView struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id"`
	SenderRole domain.SenderRole `json:"sender_role"`
	Content    string            `json:"content"`
	Seq        int64             `json:"seq"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Transcript is the full ordered snapshot of a session's messages.
type Transcript struct {
	Messages        []MessageView `json:"messages"`
	AnonymousUserID *string       `json:"anonymous_user_id"`
}

// PostChatInput starts a specialist-initiated session from an experience post.
type PostChatInput struct {
	PostID         string
	UserID         string
	InitialMessage string
}

// PostChatResult is returned after a specialist-initiated session is created.
type PostChatResult struct {
	SessionID       string      `json:"session_id"`
	AnonymousUserID string      `json:"anonymous_user_id"`
	Message         MessageView `json:"message"`
}

// ReplyInput creates a public response together with a private session.
type ReplyInput struct {
	PostID  string
	UserID  string
	Content string
}

// ReplyResult is returned after an atomic reply.
type ReplyResult struct {
	Response        ResponseView `json:"response"`
	SessionID       string       `json:"session_id"`
	AnonymousUserID string       `json:"anonymous_user_id"`
	Message         MessageView  `json:"message"`
}

// AppendInput carries a new message from a session party.
type AppendInput struct {
	SessionID      string
	UserID         string
	Content        string
	IdempotencyKey string
}

// SessionBroker creates and guards chat sessions.
type SessionBroker interface {
	CreateSeekerSession(ctx context.Context, userID string) (*SessionView, error)
	ListSessions(ctx context.Context, userID string) ([]SessionView, error)
	CloseSession(ctx context.Context, sessionID, userID string) (*SessionView, error)
	// FindPostSession returns the caller's ACTIVE session for the post, or nil.
	FindPostSession(ctx context.Context, postID, userID string) (*string, error)
	InitiatePostChat(ctx context.Context, input PostChatInput) (*PostChatResult, error)
	Reply(ctx context.Context, input ReplyInput) (*ReplyResult, error)
}

// MessageService is the append-only message log of a session.
type MessageService interface {
	Append(ctx context.Context, input AppendInput) (*MessageView, error)
	List(ctx context.Context, sessionID, userID string) (*Transcript, error)
	// Authorize resolves the caller's party, failing with
	// domain.ErrSessionNotFound for non-parties.
	Authorize(ctx context.Context, sessionID, userID string) (domain.Party, error)
}

// MessageNotifier announces appended messages to live subscribers.
type MessageNotifier interface {
	Publish(ctx context.Context, sessionID string, seq int64) error
}

// IdempotencyStore maps a client retry key to the message it produced.
type IdempotencyStore interface {
	// Reserve claims key for id before the message is written. When another
	// request already holds it, the holder's id is returned with
	// reserved=false.
	Reserve(ctx context.Context, scope, key, id string) (holder string, reserved bool, err error)
	// Release drops the claim if it is still held by id.
	Release(ctx context.Context, scope, key, id string) error
}
