package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/banking-auth/internal/auth"
	"github.com/iliyamo/banking-auth/internal/config"
	"github.com/iliyamo/banking-auth/internal/logging"
	"github.com/iliyamo/banking-auth/internal/model"
)

type fakeAuthenticator map[string]auth.Principal

func (f fakeAuthenticator) Authenticate(_ context.Context, tok string) (auth.Principal, error) {
	if tok == "down" {
		return auth.Principal{}, fmt.Errorf("%w: redis", auth.ErrDependencyUnavailable)
	}
	p, ok := f[tok]
	if !ok {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	return p, nil
}

func protected(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/p", func(c echo.Context) error {
		p, _ := PrincipalFrom(c)
		return c.String(http.StatusOK, p.Email)
	}, mw...)
	return e
}

func do(e *echo.Echo, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBearerAuth(t *testing.T) {
	authn := fakeAuthenticator{"good": {UserID: 1, Email: "a@x.com", Role: model.RoleAdmin}}
	e := protected(BearerAuth(authn))

	rec := do(e, "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "a@x.com", rec.Body.String())

	require.Equal(t, http.StatusUnauthorized, do(e, "").Code)
	require.Equal(t, http.StatusUnauthorized, do(e, "Basic abc").Code)
	require.Equal(t, http.StatusUnauthorized, do(e, "Bearer ").Code)
	require.Equal(t, http.StatusUnauthorized, do(e, "Bearer stale").Code)
	require.Equal(t, http.StatusServiceUnavailable, do(e, "Bearer down").Code)
}

func TestRequireRole(t *testing.T) {
	authn := fakeAuthenticator{
		"admin":   {UserID: 1, Role: model.RoleAdmin},
		"auditor": {UserID: 2, Role: model.RoleAuditor},
	}
	e := protected(BearerAuth(authn), RequireRole(model.RoleSuperAdmin, model.RoleAdmin))

	require.Equal(t, http.StatusOK, do(e, "Bearer admin").Code)
	require.Equal(t, http.StatusForbidden, do(e, "Bearer auditor").Code)

	// Without BearerAuth in front there is no principal at all.
	require.Equal(t, http.StatusForbidden, do(protected(RequireRole(model.RoleUser)), "").Code)
}

func limitCfg() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
}

func TestTokenBucketRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := protected(NewTokenBucket(limitCfg(), rdb, logging.Discard()))

	first := do(e, "")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, http.StatusOK, do(e, "").Code)

	blocked := do(e, "")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.NotEmpty(t, blocked.Header().Get("Retry-After"))

	require.True(t, mr.Exists("rl:ip:192.0.2.1:route:GET /p"))
}

func TestTokenBucketFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	e := protected(NewTokenBucket(limitCfg(), rdb, logging.Discard()))
	require.Equal(t, http.StatusOK, do(e, "").Code)
	require.Equal(t, http.StatusOK, do(e, "").Code)
	require.Equal(t, http.StatusTooManyRequests, do(e, "").Code)
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := limitCfg()
	cfg.Enabled = false
	e := protected(NewTokenBucket(cfg, nil, logging.Discard()))
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, do(e, "").Code)
	}
}

func TestLocalBucketsRefill(t *testing.T) {
	l := newLocalBuckets(limitCfg())
	now := time.Now()

	ok, _, _ := l.take("k", now)
	require.True(t, ok)
	ok, _, _ = l.take("k", now)
	require.True(t, ok)
	ok, _, retry := l.take("k", now)
	require.False(t, ok)
	require.Positive(t, retry)

	ok, _, _ = l.take("k", now.Add(time.Minute))
	require.True(t, ok)

	// Idle buckets are swept once the TTL passes.
	l.take("other", now.Add(20*time.Minute))
	require.NotContains(t, l.buckets, "k")
}
