package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV":    "test",
		"APP_PORT":   "8080",
		"DB_USER":    "bank",
		"DB_HOST":    "localhost",
		"DB_PORT":    "3306",
		"DB_NAME":    "auth",
		"JWT_SECRET": "s3cret",
	} {
		t.Setenv(k, v)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, cfg.AccessTTL())
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL())
	require.Equal(t, time.Hour, cfg.ResetTTL)
	require.Equal(t, 10, cfg.BcryptCost)
	require.Equal(t, "auth.email", cfg.MailQueue)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "5")
	t.Setenv("RESET_TOKEN_TTL", "15m")
	t.Setenv("MAX_FAILED_LOGINS", "0")
	t.Setenv("BCRYPT_COST", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.AccessTTL())
	require.Equal(t, 15*time.Minute, cfg.ResetTTL)
	require.Zero(t, cfg.MaxFailedLogins)
	require.Equal(t, 10, cfg.BcryptCost)
}

func TestFromEnvMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err := FromEnv()
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestFromEnvRejectsNonPositiveTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "0")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	require.Equal(t, 1, c.Capacity)
	require.Equal(t, 2*time.Second, c.RefillInterval)
	require.Equal(t, 10*time.Second, c.TTL)

	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "500ms")
	c = LoadRateLimitConfig()
	require.Equal(t, 20, c.Capacity)
	require.Equal(t, 500*time.Millisecond, c.RefillInterval)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	require.Equal(t, "cache:6380", RedisOptions().Addr)
	require.Equal(t, 2, RedisOptions().DB)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_TLS", "1")
	opts := RedisOptions()
	require.Equal(t, "redis:6379", opts.Addr)
	require.NotNil(t, opts.TLSConfig)
}
