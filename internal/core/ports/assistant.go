package ports

import (
	"context"
	"fmt"

	"github.com/mentalcompass/platform/internal/core/domain"
)

// CompletionProvider sends one chat completion request for the given model.
type CompletionProvider interface {
	Complete(ctx context.Context, model string, turns []domain.ChatTurn) (string, error)
}

// ProviderError is the normalized failure of a completion provider call.
// Status is the HTTP status returned by the provider, or 0 when unknown.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.Status, e.Message)
}

// AssessmentRepository accumulates assistant conversations per user.
type AssessmentRepository interface {
	// AppendTurns atomically appends turns to the user's assessment,
	// creating it when absent.
	AppendTurns(ctx context.Context, userID string, turns []domain.ChatTurn) error
}

// AssessmentQueue hands an exchange to the background writer.
// Enqueue never blocks; it reports false when the exchange was dropped.
type AssessmentQueue interface {
	Enqueue(userID string, turns []domain.ChatTurn) bool
}

// AssistantInput is one user message to the assistant.
type AssistantInput struct {
	UserID  string
	Message string
	History []domain.ChatTurn
}

// AssistantReply is always rendered with 200, even when Text is a fallback
// apology; Degraded marks the latter.
type AssistantReply struct {
	Text     string `json:"response"`
	Model    string `json:"model,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

type AssistantService interface {
	Chat(ctx context.Context, input AssistantInput) (*AssistantReply, error)
}
