package middleware // reusable HTTP middleware for the auth API

import (
	"context"  // context flows from the request into the authenticator
	"errors"   // errors.Is distinguishes an outage from a bad token
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/banking-auth/internal/auth" // principal type and sentinel errors
)

// Authenticator resolves a raw access token to the caller.  *auth.Service
// implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (auth.Principal, error)
}

// BearerAuth returns an Echo middleware that requires a live access token in
// the Authorization header.  A signature check alone is not enough: the
// token must also be the one currently stored for the user, so a logout or a
// newer login revokes it immediately.  On success the principal is stored on
// the context for PrincipalFrom.
func BearerAuth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			p, err := a.Authenticate(c.Request().Context(), raw)
			if err != nil {
				// The session store being down is not the caller's fault.
				if errors.Is(err, auth.ErrDependencyUnavailable) {
					c.Logger().Errorf("bearer auth: %v", err)
					return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			SetPrincipal(c, p)
			return next(c)
		}
	}
}
