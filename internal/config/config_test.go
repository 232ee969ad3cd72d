package config

import (
	"os"
	"testing"
	"time"
)

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if original, ok := os.LookupEnv(key); ok {
		t.Cleanup(func() { os.Setenv(key, original) })
	}
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "LOG_FORMAT", "MAX_UPLOAD_SIZE", "PDF_SNIFF",
		"LLM_PROVIDER", "LLM_MODEL", "LLM_TIMEOUT",
		"SESSION_PROVIDER", "SESSION_TTL",
		"HISTORY_PROVIDER", "HISTORY_SUBJECT", "HISTORY_TABLE", "SQLITE_PATH",
	} {
		unsetEnv(t, key)
	}

	cfg := Load()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 8080},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "json"},
		{"MaxUploadSize", cfg.MaxUploadSize, int64(10485760)},
		{"PDFSniff", cfg.PDFSniff, false},
		{"LLMProvider", cfg.LLMProvider, "gemini"},
		{"LLMModel", cfg.LLMModel, ""},
		{"LLMTimeout", cfg.LLMTimeout, 60 * time.Second},
		{"SessionProvider", cfg.SessionProvider, "memory"},
		{"SessionTTL", cfg.SessionTTL, time.Hour},
		{"HistoryProvider", cfg.HistoryProvider, "none"},
		{"HistorySubject", cfg.HistorySubject, "history.asks"},
		{"HistoryTable", cfg.HistoryTable, "ask_history"},
		{"SQLitePath", cfg.SQLitePath, "history.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s=%v, got %v", tt.name, tt.expected, tt.got)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("PDF_SNIFF", "true")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.LLMTimeout != 5*time.Second {
		t.Errorf("expected llm timeout 5s, got %v", cfg.LLMTimeout)
	}
	if !cfg.PDFSniff {
		t.Error("expected PDF sniffing enabled")
	}
}

func TestLoadProviderOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("SESSION_PROVIDER", "redis")
	t.Setenv("HISTORY_PROVIDER", "nats")

	cfg := Load()

	if cfg.LLMProvider != "openai" {
		t.Errorf("expected LLM provider 'openai', got %s", cfg.LLMProvider)
	}
	if cfg.SessionProvider != "redis" {
		t.Errorf("expected session provider 'redis', got %s", cfg.SessionProvider)
	}
	if cfg.HistoryProvider != "nats" {
		t.Errorf("expected history provider 'nats', got %s", cfg.HistoryProvider)
	}
}
