package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mentalcompass/platform/internal/core/ports"
)

// ProviderFailure is the category of a failed completion attempt.
type ProviderFailure int

const (
	FailureUnknown ProviderFailure = iota
	FailureTransient
	FailureAuth
	FailureQuota
	FailureModelUnavailable
)

func (f ProviderFailure) String() string {
	switch f {
	case FailureTransient:
		return "transient"
	case FailureAuth:
		return "auth"
	case FailureQuota:
		return "quota"
	case FailureModelUnavailable:
		return "model_unavailable"
	default:
		return "unknown"
	}
}

// Fatal reports whether trying another model cannot help.
func (f ProviderFailure) Fatal() bool {
	return f == FailureTransient || f == FailureAuth || f == FailureQuota
}

// ClassifyProviderError maps a provider error to a failure category. The HTTP
// status wins when the provider returned one; the message is inspected otherwise.
func ClassifyProviderError(err error) ProviderFailure {
	if err == nil {
		return FailureUnknown
	}

	msg := err.Error()
	var pe *ports.ProviderError
	if errors.As(err, &pe) {
		switch pe.Status {
		case http.StatusTooManyRequests:
			return FailureTransient
		case http.StatusUnauthorized:
			return FailureAuth
		case http.StatusPaymentRequired:
			return FailureQuota
		case http.StatusNotFound:
			return FailureModelUnavailable
		}
		msg = pe.Code + " " + pe.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureUnknown
	}

	msg = strings.ToLower(msg)
	switch {
	case containsAny(msg, "rate limit", "rate_limit", "too many requests", "429"):
		return FailureTransient
	case containsAny(msg, "invalid_api_key", "invalid api key", "unauthorized", "authentication", "401"):
		return FailureAuth
	case containsAny(msg, "insufficient_quota", "quota", "402"):
		return FailureQuota
	case containsAny(msg, "model", "not found", "no endpoints"):
		return FailureModelUnavailable
	}
	return FailureUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
