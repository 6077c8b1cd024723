package middleware

// identity.go keeps the authenticated principal on the Echo context.  BearerAuth
// stores it; handlers, RequireRole and the rate limiter read it back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/banking-auth/internal/auth"
)

const principalKey = "principal"

// SetPrincipal attaches p to the request context.
func SetPrincipal(c echo.Context, p auth.Principal) { c.Set(principalKey, p) }

// PrincipalFrom returns the principal set by BearerAuth.
func PrincipalFrom(c echo.Context) (auth.Principal, bool) {
	p, ok := c.Get(principalKey).(auth.Principal)
	return p, ok
}

// userID identifies the caller for rate-limit keys; "guest" when the
// request is anonymous.
func userID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok && p.UserID != 0 {
		return strconv.FormatUint(p.UserID, 10)
	}
	return "guest"
}
