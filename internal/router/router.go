package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // the Echo web framework handles routing

	"github.com/iliyamo/banking-auth/internal/handler"    // endpoint implementations
	"github.com/iliyamo/banking-auth/internal/middleware" // bearer auth, role gates and rate limiting
	"github.com/iliyamo/banking-auth/internal/model"      // role names for the gates
	"github.com/iliyamo/banking-auth/internal/obs"        // metrics endpoint
)

// RegisterRoutes registers the routes that need no authentication: the
// liveness and readiness probes and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, m *obs.Metrics, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(checks))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
}

// RegisterAuth registers the /v1/auth routes.  Login, refresh and reset
// take no session; forgot-password and logout need a live access token.
// Every route sits behind the rate limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn middleware.Authenticator, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/reset-password", a.ResetPassword)

	bearer := middleware.BearerAuth(authn)
	g.POST("/forgot-password", a.ForgotPassword, bearer)
	g.POST("/logout", a.Logout, bearer)
}

// RegisterUsers registers user management under /v1/users.  Registration
// and deletion are gated to SUPER_ADMIN and ADMIN before the handler runs,
// so other roles cannot learn whether an email or id exists.  The
// permission matrix inside the service then decides which target roles an
// admin may act on.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, authn middleware.Authenticator) {
	g := e.Group("/v1/users", middleware.BearerAuth(authn))
	admins := middleware.RequireRole(model.RoleSuperAdmin, model.RoleAdmin)
	g.POST("/register", u.Register, admins)
	g.DELETE("/:id", u.Delete, admins)
	g.GET("/role/:role", u.ByRole, admins)
	g.GET("/all", u.All, middleware.RequireRole(model.RoleSuperAdmin, model.RoleAuditor))
}
