package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *Config {
	return &Config{
		Port:               8080,
		DatabaseURL:        "postgres://localhost/ingest",
		RedisURL:           "rediss://localhost:6379",
		AMQPURL:            "amqp://localhost:5672",
		DedupWindowSeconds: 30,
		CSATDelayMinutes:   5,
		CSATExpiryHours:    72,
		EnrichMaxAttempts:  3,
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ingest")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("AMQP_URL", "amqp://localhost:5672")
	t.Setenv("CSAT_DELAY_MINUTES", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 30*time.Second, cfg.DedupWindow())
	assert.Equal(t, 10*time.Minute, cfg.CSATDelay())
	assert.Equal(t, 72*time.Hour, cfg.CSATExpiry())
	assert.Equal(t, "ingest", cfg.EnrichQueuePrefix)
}

func TestValidate(t *testing.T) {
	t.Run("accepts defaults outside production", func(t *testing.T) {
		assert.NoError(t, baseConfig().Validate(false))
	})

	t.Run("rejects negative dedup window", func(t *testing.T) {
		cfg := baseConfig()
		cfg.DedupWindowSeconds = -1
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects zero enrich attempts", func(t *testing.T) {
		cfg := baseConfig()
		cfg.EnrichMaxAttempts = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects short signature secret in production", func(t *testing.T) {
		cfg := baseConfig()
		cfg.WebhookSignatureSecret = "tooshort"
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("rejects known weak secret in production", func(t *testing.T) {
		cfg := baseConfig()
		cfg.WebhookSignatureSecret = "change-me" + strings.Repeat("x", 32)
		assert.NoError(t, cfg.Validate(true))

		cfg.WebhookSignatureSecret = "change-me"
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("accepts strong secret in production", func(t *testing.T) {
		cfg := baseConfig()
		cfg.WebhookSignatureSecret = strings.Repeat("s", 48)
		assert.NoError(t, cfg.Validate(true))
	})
}
