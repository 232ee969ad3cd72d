package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"pdf-insights/internal/config"
	"pdf-insights/internal/form"
	"pdf-insights/internal/history"
	"pdf-insights/internal/llm"
	"pdf-insights/internal/logger"
	"pdf-insights/internal/qa"
	"pdf-insights/internal/session"
)

// Deps bundles the runtime dependencies of the web server.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Sessions session.Store
	LLM      llm.Client
	History  history.Recorder
	QA       *qa.Service
	Form     *form.Controller
}

// HistorianDeps bundles what the history worker needs.
type HistorianDeps struct {
	Config config.Config
	Log    *slog.Logger
	Source *history.NATSRecorder
	Sink   history.Recorder
}

// Close releases every connection Build opened.
func (d Deps) Close() error {
	var errs []error
	if d.Form != nil {
		d.Form.Wait()
	}
	if d.History != nil {
		errs = append(errs, d.History.Close())
	}
	if d.Sessions != nil {
		errs = append(errs, d.Sessions.Close())
	}
	if c, ok := d.LLM.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Close releases the worker connections.
func (d HistorianDeps) Close() error {
	var errs []error
	if d.Source != nil {
		errs = append(errs, d.Source.Close())
	}
	if d.Sink != nil {
		errs = append(errs, d.Sink.Close())
	}
	return errors.Join(errs...)
}

// loadEnv reads .env when present; a missing file is not an error.
func loadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// Build loads env, config, and shared components.
func Build(ctx context.Context) (Deps, error) {
	if err := loadEnv(); err != nil {
		return Deps{}, err
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	return BuildWith(ctx, cfg, log)
}

// BuildWith wires the server from an explicit config.
func BuildWith(ctx context.Context, cfg config.Config, log *slog.Logger) (Deps, error) {
	llmClient, err := buildLLM(ctx, cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	sessions, err := buildSessions(cfg, log)
	if err != nil {
		_ = Deps{LLM: llmClient}.Close()
		return Deps{}, fmt.Errorf("failed to initialize sessions: %w", err)
	}
	rec, err := buildHistory(ctx, cfg, log)
	if err != nil {
		_ = Deps{LLM: llmClient, Sessions: sessions}.Close()
		return Deps{}, fmt.Errorf("failed to initialize history: %w", err)
	}

	svc := qa.NewService(llmClient, log, qa.WithMaxDocumentSize(cfg.MaxUploadSize))
	ctrl := form.NewController(sessions, svc, log,
		form.WithRecorder(rec),
		form.WithSniffing(cfg.PDFSniff),
		form.WithMaxSize(cfg.MaxUploadSize),
	)
	return Deps{
		Config:   cfg,
		Log:      log,
		Sessions: sessions,
		LLM:      llmClient,
		History:  rec,
		QA:       svc,
		Form:     ctrl,
	}, nil
}

// BuildHistorian wires the NATS consumer to the Postgres sink.
func BuildHistorian(ctx context.Context) (HistorianDeps, error) {
	if err := loadEnv(); err != nil {
		return HistorianDeps{}, err
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	source, err := buildNATS(cfg, log)
	if err != nil {
		return HistorianDeps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	sink, err := buildPostgres(ctx, cfg, log)
	if err != nil {
		source.Close()
		return HistorianDeps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	return HistorianDeps{Config: cfg, Log: log, Source: source, Sink: sink}, nil
}

func buildLLM(ctx context.Context, cfg config.Config, log *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel, llm.WithGeminiTimeout(cfg.LLMTimeout))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		log.Info("using Gemini LLM client", "model", modelOrDefault(cfg.LLMModel, llm.DefaultGeminiModel))
		return client, nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel), cfg.LLMTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", modelOrDefault(cfg.LLMModel, string(openai.ChatModelGPT4oMini)))
		return client, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: gemini, openai)", cfg.LLMProvider)
	}
}

func modelOrDefault(model, def string) string {
	if model == "" {
		return def
	}
	return model
}

func buildSessions(cfg config.Config, log *slog.Logger) (session.Store, error) {
	switch cfg.SessionProvider {
	case "memory":
		log.Info("using in-memory session store", "ttl", cfg.SessionTTL)
		return session.NewMemoryStore(cfg.SessionTTL), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when SESSION_PROVIDER=redis")
		}
		st, err := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		log.Info("using Redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
		return st, nil
	default:
		return nil, fmt.Errorf("invalid SESSION_PROVIDER: %s (valid options: memory, redis)", cfg.SessionProvider)
	}
}

func buildHistory(ctx context.Context, cfg config.Config, log *slog.Logger) (history.Recorder, error) {
	switch cfg.HistoryProvider {
	case "none", "":
		return history.NewNoopRecorder(), nil
	case "nats":
		rec, err := buildNATS(cfg, log)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case "postgres":
		rec, err := buildPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case "sqlite":
		rec, err := history.NewSQLite(ctx, cfg.SQLitePath, cfg.HistoryTable)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		log.Info("using SQLite history", "path", cfg.SQLitePath, "table", cfg.HistoryTable)
		return rec, nil
	default:
		return nil, fmt.Errorf("invalid HISTORY_PROVIDER: %s (valid options: none, nats, postgres, sqlite)", cfg.HistoryProvider)
	}
}

func buildNATS(cfg config.Config, log *slog.Logger) (*history.NATSRecorder, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("QUEUE_URL is required for NATS history")
	}
	nc, err := nats.Connect(cfg.QueueURL, nats.Name("pdf-insights"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("using NATS history", "subject", cfg.HistorySubject)
	return history.NewNATS(log, nc, cfg.HistorySubject), nil
}

func buildPostgres(ctx context.Context, cfg config.Config, log *slog.Logger) (*history.PostgresRecorder, error) {
	if cfg.DBURL == "" {
		return nil, fmt.Errorf("DB_URL is required for Postgres history")
	}
	rec, err := history.NewPostgres(ctx, cfg.DBURL, cfg.HistoryTable)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
	}
	log.Info("using Postgres history", "table", cfg.HistoryTable)
	return rec, nil
}
