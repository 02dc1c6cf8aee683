package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

func withPostID(c echo.Context, id string) {
	c.SetParamNames("postId")
	c.SetParamValues(id)
}

func TestExperienceHandler_ChatStatus(t *testing.T) {
	existing := "s-1"
	tests := []struct {
		name       string
		found      *string
		wantExists bool
	}{
		{"no session", nil, false},
		{"active session", &existing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := &stubBroker{
				findPostFn: func(ctx context.Context, postID, userID string) (*string, error) {
					return tt.found, nil
				},
			}
			c, rec := newContext(http.MethodGet, "/experiences/p-1/chat", "", "sp-user")
			withPostID(c, "p-1")

			if err := NewExperienceHandler(nil, broker).ChatStatus(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			var st postChatStatus
			if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if st.Exists != tt.wantExists {
				t.Fatalf("exists: got %v, want %v", st.Exists, tt.wantExists)
			}
		})
	}
}

func TestExperienceHandler_InitiateChat(t *testing.T) {
	broker := &stubBroker{
		initiateFn: func(ctx context.Context, in ports.PostChatInput) (*ports.PostChatResult, error) {
			if in.PostID != "p-1" || in.UserID != "sp-user" || in.InitialMessage != "Hello there" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.PostChatResult{SessionID: "s-1", AnonymousUserID: "User #A1B2C3"}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/experiences/p-1/chat", `{"initial_message":"Hello there"}`, "sp-user")
	withPostID(c, "p-1")

	if err := NewExperienceHandler(nil, broker).InitiateChat(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestExperienceHandler_Reply_Conflict(t *testing.T) {
	broker := &stubBroker{
		replyFn: func(ctx context.Context, in ports.ReplyInput) (*ports.ReplyResult, error) {
			return nil, &domain.SessionConflictError{SessionID: "s-existing"}
		},
	}
	c, _ := newContext(http.MethodPost, "/experiences/p-1/reply", `{"content":"I hear you"}`, "sp-user")
	withPostID(c, "p-1")

	err := NewExperienceHandler(nil, broker).Reply(c)
	var conflict *domain.SessionConflictError
	if !errors.As(err, &conflict) || conflict.SessionID != "s-existing" {
		t.Fatalf("expected conflict with existing id, got %v", err)
	}
}

func TestExperienceHandler_Reply_NotVerified(t *testing.T) {
	broker := &stubBroker{
		replyFn: func(ctx context.Context, in ports.ReplyInput) (*ports.ReplyResult, error) {
			return nil, domain.ErrNotVerifiedSpecialist
		},
	}
	c, _ := newContext(http.MethodPost, "/experiences/p-1/reply", `{"content":"I hear you"}`, "u-1")
	withPostID(c, "p-1")

	if err := NewExperienceHandler(nil, broker).Reply(c); !errors.Is(err, domain.ErrNotVerifiedSpecialist) {
		t.Fatalf("expected ErrNotVerifiedSpecialist, got %v", err)
	}
}
