package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "muninn", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 20, cfg.SDK.BatchSize)
	assert.Equal(t, 3, cfg.SDK.MaxRetries)
	assert.Equal(t, 10000, cfg.SDK.MaxPendingEvents)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Redis.IsConfigured())
	assert.False(t, cfg.Database.IsConfigured())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MUNINN_SDK_BATCH_SIZE", "50")
	t.Setenv("MUNINN_SDK_BASE_URL", "https://ingest.example.com")
	t.Setenv("MUNINN_APP_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.SDK.BatchSize)
	assert.Equal(t, "https://ingest.example.com", cfg.SDK.BaseURL)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad environment", "MUNINN_APP_ENV", "galaxy"},
		{"bad log level", "MUNINN_APP_LOG_LEVEL", "loud"},
		{"bad base url", "MUNINN_SDK_BASE_URL", "ftp://example.com"},
		{"bad server port", "MUNINN_SERVER_PORT", "99999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRedisConfig(t *testing.T) {
	t.Run("address from components", func(t *testing.T) {
		cfg := RedisConfig{Host: "localhost", Port: "6379", PoolSize: 10}
		assert.Equal(t, "localhost:6379", cfg.Address())
		assert.True(t, cfg.IsConfigured())
		assert.NoError(t, cfg.Validate("development"))
	})

	t.Run("url passthrough", func(t *testing.T) {
		cfg := RedisConfig{URL: "redis://localhost:6379/2"}
		assert.Equal(t, "redis://localhost:6379/2", cfg.Address())
		assert.NoError(t, cfg.Validate("development"))
	})

	t.Run("invalid db number in url", func(t *testing.T) {
		cfg := RedisConfig{URL: "redis://localhost:6379/99"}
		assert.Error(t, cfg.Validate("development"))
	})

	t.Run("production requires password", func(t *testing.T) {
		cfg := RedisConfig{Host: "redis", Port: "6379", PoolSize: 10}
		assert.Error(t, cfg.Validate(EnvironmentProduction))
	})
}

func TestDatabaseConfig(t *testing.T) {
	t.Run("connection string from components", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host: "db", Port: "5432", Name: "muninn", User: "muninn",
			Password: "s3cret", SSLMode: "disable", MaxConns: 10,
		}
		assert.True(t, cfg.IsConfigured())
		assert.NoError(t, cfg.Validate("development"))
		assert.Contains(t, cfg.ConnectionString(), "postgres://muninn:s3cret@db:5432/muninn")
		assert.Contains(t, cfg.ConnectionString(), "sslmode=disable")
	})

	t.Run("pool bounds", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host: "db", Port: "5432", Name: "m", User: "m",
			SSLMode: "disable", MaxConns: 2, MinConns: 5,
		}
		assert.Error(t, cfg.Validate("development"))
	})
}
