package handler

import "github.com/mentalcompass/platform/internal/core/domain"

// ErrorResponse is the error envelope of every API failure.
type ErrorResponse struct {
	Error     string              `json:"error"`
	Details   []domain.FieldError `json:"details,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
}

// errorResponse aliases ErrorResponse for swagger annotations in this package.
type errorResponse = ErrorResponse
