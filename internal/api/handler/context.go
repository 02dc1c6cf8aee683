package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mentalcompass/platform/internal/api/middleware"
)

// ctxUserID returns the authenticated user id injected by the Auth
// middleware. Its absence means the route was mounted without Auth.
func ctxUserID(c echo.Context) (string, error) {
	uid, _ := c.Get(middleware.KeyUserID).(string)
	if uid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return uid, nil
}

// optionalUserID returns the user id when OptionalAuth found a token, or "".
func optionalUserID(c echo.Context) string {
	uid, _ := c.Get(middleware.KeyUserID).(string)
	return uid
}

// bindAndValidate decodes the request into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}
