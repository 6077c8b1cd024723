package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/banking-auth/internal/auth"
)

// errorMapping pairs an auth sentinel with its HTTP status and metric label.
// Order matters: the first match wins.
var errorMapping = []struct {
	err    error
	status int
	label  string
}{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{auth.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{auth.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{auth.ErrUserAlreadyExists, http.StatusConflict, "user_already_exists"},
	{auth.ErrAccessDenied, http.StatusForbidden, "access_denied"},
	{auth.ErrTokenExpired, http.StatusGone, "token_expired"},
	{auth.ErrTokenNotFound, http.StatusNotFound, "token_not_found"},
	{auth.ErrSamePassword, http.StatusUnprocessableEntity, "same_password"},
	{auth.ErrDependencyUnavailable, http.StatusServiceUnavailable, "dependency_unavailable"},
}

// classify returns the status and label for err.  Unknown errors are 500.
func classify(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.label
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeError renders err as {"error": "..."}.  Credential failures and
// outages get fixed messages; the rest carry the wrapped detail, which
// only ever names roles or token states.
func writeError(c echo.Context, err error) error {
	status, label := classify(err)
	msg := err.Error()
	switch label {
	case "invalid_credentials":
		msg = "invalid email or password"
	case "dependency_unavailable":
		c.Logger().Errorf("dependency unavailable: %v", err)
		msg = "service temporarily unavailable"
	case "internal":
		c.Logger().Errorf("internal error: %v", err)
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}
