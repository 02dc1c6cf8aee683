package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by Auth and OptionalAuth.
const (
	KeyUserID = "user_id"
	KeyEmail  = "email"
	KeyRole   = "role"
)

// tokenQueryParam lets browser websocket clients, which cannot set headers,
// authenticate the upgrade request. Only StreamAuth reads it.
const tokenQueryParam = "access_token"

// Auth validates the bearer JWT and injects claims into context.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return authenticate(jwtSecret, extractToken)
}

// StreamAuth is Auth for websocket upgrades: the token may also come from the
// access_token query parameter when no Authorization header is sent.
func StreamAuth(jwtSecret string) echo.MiddlewareFunc {
	return authenticate(jwtSecret, func(c echo.Context) (string, error) {
		if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
			if q := c.QueryParam(tokenQueryParam); q != "" {
				return q, nil
			}
		}
		return extractToken(c)
	})
}

func authenticate(jwtSecret string, extract func(echo.Context) (string, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := extract(c)
			if err != nil {
				return err
			}
			claims, err := parseToken(raw, jwtSecret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			setClaims(c, claims)
			return next(c)
		}
	}
}

// OptionalAuth injects claims when a valid bearer token is present and lets
// anonymous requests through unchanged. An invalid token is still rejected.
func OptionalAuth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			raw, err := extractToken(c)
			if err != nil {
				return err
			}
			claims, err := parseToken(raw, jwtSecret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			setClaims(c, claims)
			return next(c)
		}
	}
}

func extractToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}

func parseToken(raw, jwtSecret string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if uid, _ := claims["user_id"].(string); uid == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func setClaims(c echo.Context, claims jwt.MapClaims) {
	c.Set(KeyUserID, claims["user_id"])
	c.Set(KeyEmail, claims["email"])
	c.Set(KeyRole, claims["role"])
}
