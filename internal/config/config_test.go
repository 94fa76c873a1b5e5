package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinyte/mcp-server/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.HTTPPort)
	assert.Equal(t, "/metrics", cfg.MetricsPath)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.Equal(t, 5*time.Minute, cfg.StateSyncInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "backups", cfg.BackupDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("DATABASE_URL", "  postgres://localhost/mcp  ")
	t.Setenv("WEB_CACHE_TTL", "30s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "postgres://localhost/mcp", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.WebCacheTTL)
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "70000")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadClampsSyncInterval(t *testing.T) {
	t.Setenv("STATE_SYNC_INTERVAL", "5s")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.StateSyncInterval)
}
