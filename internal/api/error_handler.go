package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mentalcompass/platform/internal/api/handler"
	"github.com/mentalcompass/platform/internal/core/domain"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes.
//   - Adds field details to validation failures and the existing session id to conflicts.
//   - Logs unexpected errors without leaking details to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.ErrorResponse) {
	// Echo's own errors (bind failures, 404 from router, middleware rejections).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.ErrorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, handler.ErrorResponse{Error: "invalid input", Details: ve.Fields}
	}

	var conflict *domain.SessionConflictError
	if errors.As(err, &conflict) {
		return http.StatusConflict, handler.ErrorResponse{
			Error:     domain.ErrSessionExists.Error(),
			SessionID: conflict.SessionID,
		}
	}

	if code, ok := statusFor(err); ok {
		return code, handler.ErrorResponse{Error: publicMessage(err)}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, handler.ErrorResponse{Error: "internal server error"}
}

var domainStatus = []struct {
	err  error
	code int
}{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrNotVerifiedSpecialist, http.StatusForbidden},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrSpecialistNotFound, http.StatusNotFound},
	{domain.ErrCertificationNotFound, http.StatusNotFound},
	{domain.ErrPostNotFound, http.StatusNotFound},
	{domain.ErrSessionNotFound, http.StatusNotFound},
	{domain.ErrMessageNotFound, http.StatusNotFound},
	{domain.ErrBlogPostNotFound, http.StatusNotFound},
	{domain.ErrUserExists, http.StatusConflict},
	{domain.ErrReviewExists, http.StatusConflict},
	{domain.ErrCertificationFinal, http.StatusConflict},
	{domain.ErrSessionClosed, http.StatusConflict},
	{domain.ErrSessionExists, http.StatusConflict},
	{domain.ErrRequestInProgress, http.StatusConflict},
	{domain.ErrProviderUnavailable, http.StatusServiceUnavailable},
}

func statusFor(err error) (int, bool) {
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			return m.code, true
		}
	}
	return 0, false
}

// publicMessage returns the sentinel text, dropping any wrapping context
// added by services.
func publicMessage(err error) string {
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			return m.err.Error()
		}
	}
	return err.Error()
}
