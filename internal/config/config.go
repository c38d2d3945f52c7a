package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	AMQPURL     string `env:"AMQP_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	WebhookSignatureSecret string `env:"WEBHOOK_SIGNATURE_SECRET"`

	DedupWindowSeconds int    `env:"DEDUP_WINDOW_SECONDS" envDefault:"30"`
	MediaDir           string `env:"MEDIA_DIR" envDefault:"/var/lib/ingest/media"`
	FFmpegPath         string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	MediaServiceURL      string `env:"MEDIA_SERVICE_URL"`
	GenerationServiceURL string `env:"GENERATION_SERVICE_URL"`
	AnalysisServiceURL   string `env:"ANALYSIS_SERVICE_URL"`
	SenderServiceURL     string `env:"SENDER_SERVICE_URL"`

	TranscriptionLanguage string `env:"TRANSCRIPTION_LANGUAGE" envDefault:"pt"`
	TranscriptionQuality  string `env:"TRANSCRIPTION_QUALITY" envDefault:"standard"`
	TranscriptionDelayMs  int    `env:"TRANSCRIPTION_DELAY_MS" envDefault:"1200"`

	CSATDelayMinutes  int    `env:"CSAT_DELAY_MINUTES" envDefault:"5"`
	CSATExpiryHours   int    `env:"CSAT_EXPIRY_HOURS" envDefault:"72"`
	EnrichMaxAttempts int    `env:"ENRICH_MAX_ATTEMPTS" envDefault:"3"`
	EnrichQueuePrefix string `env:"ENRICH_QUEUE_PREFIX" envDefault:"ingest"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowSeconds) * time.Second
}

func (c *Config) TranscriptionDelay() time.Duration {
	return time.Duration(c.TranscriptionDelayMs) * time.Millisecond
}

func (c *Config) CSATDelay() time.Duration {
	return time.Duration(c.CSATDelayMinutes) * time.Minute
}

func (c *Config) CSATExpiry() time.Duration {
	return time.Duration(c.CSATExpiryHours) * time.Hour
}

func (c *Config) Validate(isProduction bool) error {
	if c.DedupWindowSeconds < 0 {
		return fmt.Errorf("DEDUP_WINDOW_SECONDS must not be negative")
	}
	if c.EnrichMaxAttempts < 1 {
		return fmt.Errorf("ENRICH_MAX_ATTEMPTS must be at least 1")
	}

	if isProduction {
		if err := validateSecret("WEBHOOK_SIGNATURE_SECRET", c.WebhookSignatureSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.GenerationServiceURL == "" {
			log.Warn().Msg("GENERATION_SERVICE_URL is empty in production: automated replies disabled")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if value == "" {
		log.Warn().Msgf("%s is empty in production: webhook signature verification disabled", name)
		return nil
	}
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
