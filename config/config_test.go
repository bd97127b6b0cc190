package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkantrust/idempotent-payments/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "bolt", cfg.Store.Driver)
	assert.Equal(t, "payments.db", cfg.Store.Path)
	assert.Equal(t, 30*time.Second, cfg.Idempotency.TTL)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.Server.TrustProxy)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/legacy.db")
	t.Setenv("PAYMENTS_STORE_DRIVER", "sqlite")
	t.Setenv("PAYMENTS_IDEMPOTENCY_TTL", "45s")
	t.Setenv("PAYMENTS_SERVER_TRUST_PROXY", "true")

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/tmp/legacy.db", cfg.Store.Path)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 45*time.Second, cfg.Idempotency.TTL)
	assert.True(t, cfg.Server.TrustProxy)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payments.yaml")
	err := os.WriteFile(path, []byte(`
store:
  driver: memory
rate_limit:
  enabled: false
log:
  level: debug
  format: json
`), 0o600)
	require.NoError(t, err)

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PAYMENTS_STORE_DRIVER":    "postgres",
		"PAYMENTS_IDEMPOTENCY_TTL": "-1s",
		"PAYMENTS_LOG_LEVEL":       "loud",
		"PAYMENTS_LOG_FORMAT":      "xml",
		"PAYMENTS_RATE_LIMIT_RPS":  "0",
	}
	for env, value := range cases {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, value)
			_, err := config.Load(config.New(), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(config.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
