package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "WalletLedger", cfg.AppName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 10*time.Second, cfg.ShutdownPeriod)
	assert.True(t, cfg.IsDev())

	opts := cfg.LedgerOptions()
	assert.Equal(t, 5, opts.DebitLimit)
	assert.Equal(t, time.Minute, opts.DebitWindow)
	assert.Equal(t, time.Minute, opts.BalanceTTL)
	assert.Equal(t, 2*time.Second, opts.CacheTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PORT", ":9090")
	t.Setenv("DEBIT_RATE_LIMIT", "10")
	t.Setenv("DEBIT_RATE_WINDOW", "30s")
	t.Setenv("BALANCE_CACHE_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, 10, cfg.DebitRateLimit)
	assert.Equal(t, 30*time.Second, cfg.DebitRateWindow)
	assert.Equal(t, 5*time.Minute, cfg.BalanceCacheTTL)
}

func TestLoadRequiresSecretAndBackends(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APP_ENV", "development")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "development")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}
