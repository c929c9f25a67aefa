package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "8081", cfg.WSPort)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, int32(10), cfg.DatabaseConfig.MaxConns)
	assert.Equal(t, int32(2), cfg.DatabaseConfig.MinConns)
	assert.Equal(t, 5.0, cfg.RateLimit.RPS)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 50, cfg.Exchange.StartingPoints)
	assert.Equal(t, 10, cfg.Exchange.PointsForGivingItem)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("PGHOST", "db")
	t.Setenv("PGPORT", "6543")
	t.Setenv("PGUSER", "u")
	t.Setenv("PGPASSWORD", "p")
	t.Setenv("PGDATABASE", "swap")
	t.Setenv("PGSSLMODE", "require")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:6543/swap?sslmode=require", cfg.DatabaseURL)
}

func TestLoadRequiredVariables(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
}

func TestLoadDevelopmentWithoutBotToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORAGE_DRIVER", StorageMemory)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("DB_MAX_CONNS", "many")
	t.Setenv("RATE_LIMIT_RPS", "fast")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
	assert.Contains(t, err.Error(), "DB_MAX_CONNS")
	assert.Contains(t, err.Error(), "RATE_LIMIT_RPS")
}
