package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration loaded once at startup.
type Config struct {
	// Server
	Port           int           `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"90s"`
	Locale         string        `env:"LOCALE" envDefault:"es"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// Sessions
	SessionIdleTTL      time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SessionReapInterval time.Duration `env:"SESSION_REAP_INTERVAL" envDefault:"1m"`

	// LLM
	LLMProvider string        `env:"LLM_PROVIDER" envDefault:"openai"` // "openai", "gemini" (Vertex AI) or "stub" (canned reply)
	OpenAIKey   string        `env:"OPENAI_API_KEY"`
	LLMBaseURL  string        `env:"LLM_BASE_URL"` // OpenAI-compatible endpoint override
	LLMModel    string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout  time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	// Gemini via Vertex AI
	GoogleProject     string `env:"GOOGLE_CLOUD_PROJECT"`
	GoogleLocation    string `env:"GOOGLE_CLOUD_LOCATION" envDefault:"us-central1"`
	GoogleCredentials string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	// Answer cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"none"` // "none" or "redis"
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"1h"`

	// Notifications
	EventsProvider string `env:"EVENTS_PROVIDER" envDefault:"none"` // "none" or "nats"
	NATSURL        string `env:"NATS_URL"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
