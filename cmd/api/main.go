package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/fitcoach-platform/fitcoach/internal/api"
	"github.com/fitcoach-platform/fitcoach/internal/assistant"
	"github.com/fitcoach-platform/fitcoach/internal/auth"
	"github.com/fitcoach-platform/fitcoach/internal/config"
	"github.com/fitcoach-platform/fitcoach/internal/conversation"
	"github.com/fitcoach-platform/fitcoach/internal/database"
	"github.com/fitcoach-platform/fitcoach/internal/llm"
	"github.com/fitcoach-platform/fitcoach/internal/maintenance"
	"github.com/fitcoach-platform/fitcoach/internal/middleware"
	fcnats "github.com/fitcoach-platform/fitcoach/internal/nats"
	iredis "github.com/fitcoach-platform/fitcoach/internal/redis"
	"github.com/fitcoach-platform/fitcoach/internal/retrieval"
	"github.com/fitcoach-platform/fitcoach/internal/server"
	"github.com/fitcoach-platform/fitcoach/internal/tools"
	"github.com/fitcoach-platform/fitcoach/internal/topics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional)
	var natsClient *fcnats.Client
	var publisher *fcnats.Publisher
	if cfg.NATS.Enabled {
		natsClient, err = fcnats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = fcnats.NewPublisher(natsClient.JetStream())
	}

	// Model providers
	openaiClient := llm.NewOpenAIClient(cfg.OpenAI)

	// Memory core
	store := conversation.NewPostgresStore(pool)
	sessions := conversation.NewSessionWindow(redisClient, cfg.Session)
	engine := retrieval.NewEngine(store, openaiClient, cfg.Retrieval)
	summarizer := topics.NewSummarizer(store)
	executor := tools.NewExecutor(engine, summarizer)

	// Warm the vector index so the first search does not pay the build
	go func() {
		if err := engine.EnsureReady(ctx); err != nil {
			slog.Warn("initial index build failed, will retry on first search", "error", err)
		}
	}()

	// Assistant
	coach := assistant.New(
		openaiClient,
		openaiClient,
		store,
		sessions,
		engine,
		executor,
		publisher,
		cfg.OpenAI.MaxConcurrent,
	)

	// Maintenance
	var audit maintenance.AuditPublisher
	if publisher != nil {
		audit = publisher
	}
	runner := maintenance.NewRunner(store, engine, audit, cfg.Maintenance)
	runner.Start(ctx, natsClient)

	// HTTP surface
	chatHandler := assistant.NewChatHandler(coach)
	searchHandler := retrieval.NewSearchHandler(engine)
	summaryHandler := topics.NewSummaryHandler(summarizer)

	verifier := auth.NewJWTVerifier(cfg.JWT.AccessSecret)
	chatLimiter := middleware.NewRateLimiter(redisClient, "chat", 30, 60)

	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		ChatRateLimiter: chatLimiter.Middleware,
	}, api.HandlerSet{
		Chat:           chatHandler.Chat,
		MemorySearch:   searchHandler.Search,
		MemorySummary:  summaryHandler.Summary,
		AuthMiddleware: auth.Middleware(verifier),
		IndexReady:     engine.Ready,
	})

	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
