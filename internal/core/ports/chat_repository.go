package ports

import (
	"context"
	"time"

	"github.com/mentalcompass/platform/internal/core/domain"
)

// ChatRepository persists chat sessions and their message logs.
//
// Creation methods return domain.ErrSessionExists when the store already
// holds an ACTIVE session for the same (experience post, specialist) pair.
// Multi-document creations are all-or-nothing.
type ChatRepository interface {
	CreateSession(ctx context.Context, s *domain.ChatSession) error
	// CreateSessionWithMessage inserts a session and its first message atomically.
	CreateSessionWithMessage(ctx context.Context, s *domain.ChatSession, first *domain.Message) error
	// CreateReply inserts a public response, a session and its first message atomically.
	CreateReply(ctx context.Context, resp *domain.ExperiencePostResponse, s *domain.ChatSession, first *domain.Message) error

	FindSession(ctx context.Context, id string) (*domain.ChatSession, error)
	FindActiveByPostAndSpecialist(ctx context.Context, postID, specialistID string) (*domain.ChatSession, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]*domain.ChatSession, error)
	ListSessionsBySpecialist(ctx context.Context, specialistID string) ([]*domain.ChatSession, error)
	// CountActiveBySpecialist returns the number of ACTIVE sessions bound to each id.
	// Ids without sessions are absent from the map.
	CountActiveBySpecialist(ctx context.Context, specialistIDs []string) (map[string]int, error)
	// CloseSession moves an ACTIVE session to CLOSED. It returns
	// domain.ErrSessionClosed if the session is not ACTIVE.
	CloseSession(ctx context.Context, id string, at time.Time) error

	// AppendMessage allocates the next sequence number of the session and
	// stores m with it. The session must be ACTIVE.
	AppendMessage(ctx context.Context, m *domain.Message) error
	// ListMessages returns the session log ordered by sequence ascending.
	ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error)
	FindMessage(ctx context.Context, id string) (*domain.Message, error)
}
