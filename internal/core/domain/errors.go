package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrForbidden          = errors.New("access forbidden")

	ErrSpecialistNotFound    = errors.New("specialist not found")
	ErrNotVerifiedSpecialist = errors.New("only verified specialists can perform this action")
	ErrCertificationNotFound = errors.New("certification not found")
	ErrCertificationFinal    = errors.New("certification already reviewed")
	ErrReviewExists          = errors.New("review already exists")

	ErrPostNotFound = errors.New("experience post not found")

	ErrSessionNotFound = errors.New("chat session not found")
	ErrSessionExists   = errors.New("chat session already exists")
	ErrSessionClosed   = errors.New("chat session is closed")
	ErrMessageNotFound = errors.New("message not found")
	// ErrRequestInProgress means another request holding the same
	// idempotency key has not finished storing its message yet.
	ErrRequestInProgress = errors.New("request with this idempotency key is still in progress")

	ErrBlogPostNotFound = errors.New("blog post not found")

	ErrProviderUnavailable = errors.New("assistant provider not configured")
)

// SessionConflictError reports an ACTIVE session that already covers the
// requested (post, specialist) pair. Callers redirect to SessionID instead of
// treating the conflict as a failure.
type SessionConflictError struct {
	SessionID string
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSessionExists, e.SessionID)
}

func (e *SessionConflictError) Unwrap() error { return ErrSessionExists }

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level detail for a rejected input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// NewValidationError builds a single-field ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
