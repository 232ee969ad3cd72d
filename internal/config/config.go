package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the server and the historian.
type Config struct {
	// Server
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // "json" or "text"

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes
	PDFSniff      bool  `env:"PDF_SNIFF" envDefault:"false"`          // also check the bytes, not only the declared type

	// LLM
	LLMProvider  string        `env:"LLM_PROVIDER" envDefault:"gemini"` // "gemini" or "openai"
	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
	OpenAIKey    string        `env:"OPENAI_API_KEY"`
	LLMModel     string        `env:"LLM_MODEL"` // empty picks the provider default
	LLMTimeout   time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	// Sessions
	SessionProvider string        `env:"SESSION_PROVIDER" envDefault:"memory"` // "memory" or "redis"
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"1h"`

	// History
	HistoryProvider string `env:"HISTORY_PROVIDER" envDefault:"none"` // "none", "nats", "postgres" or "sqlite"
	QueueURL        string `env:"QUEUE_URL"`
	DBURL           string `env:"DB_URL"`
	SQLitePath      string `env:"SQLITE_PATH" envDefault:"history.db"`
	HistorySubject  string `env:"HISTORY_SUBJECT" envDefault:"history.asks"`
	HistoryTable    string `env:"HISTORY_TABLE" envDefault:"ask_history"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
