package handler // HTTP handlers for the auth API

import (
	"context"  // context bounds each dependency check
	"net/http" // net/http provides status codes and response helpers
	"time"     // timeout for readiness probes

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is the liveness probe.  It returns a plain text "ok" with 200 as
// long as the process is serving requests.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Check probes one dependency, e.g. db.PingContext.
type Check func(ctx context.Context) error

// Ready returns the readiness probe.  Every check must pass within two
// seconds; the body lists each dependency's state.
func Ready(checks map[string]Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				c.Logger().Warnf("readiness: %s: %v", name, err)
				report[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "up"
		}
		return c.JSON(status, report)
	}
}
