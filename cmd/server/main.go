// Learning Assistant - Student Intake Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ykozlov/learning-assistant/internal/api"
	"github.com/ykozlov/learning-assistant/internal/config"
	"github.com/ykozlov/learning-assistant/internal/extract"
	"github.com/ykozlov/learning-assistant/internal/intake"
	"github.com/ykozlov/learning-assistant/internal/middleware"
	"github.com/ykozlov/learning-assistant/internal/notify"
	"github.com/ykozlov/learning-assistant/internal/session"
	"github.com/ykozlov/learning-assistant/internal/store"
	"github.com/ykozlov/learning-assistant/internal/translog"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "session_backend", cfg.SessionBackend)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Session state storage: in-process by default, redis or the SQLite
	// repository when the deployment needs sessions to survive restarts.
	var sessions session.Store
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			slog.Error("Redis health check failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		sessions = session.NewRedisStore(client, cfg.SessionTTL)
		slog.Info("Redis session store connected", "addr", cfg.RedisAddr)
	case config.SessionBackendSQLite:
		sessions = session.NewRepoStore(repo)
	default:
		sessions = session.NewMemoryStore()
	}

	// Field extraction is optional: without an API key the assistant still
	// routes and asks questions, it just never fills the profile.
	var completer extract.Completer
	if cfg.OpenAIAPIKey != "" {
		completer = extract.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		slog.Info("Extraction enabled", "model", cfg.OpenAIModel)
	} else {
		slog.Warn("OPENAI_API_KEY not set, field extraction disabled")
		completer = extract.Disabled{}
	}
	extractor := extract.New(completer, cfg.ExtractTimeout)

	var notifier intake.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout)
		slog.Info("Completion webhook enabled")
	} else {
		slog.Warn("WEBHOOK_URL not set, completion notifications disabled")
		notifier = notify.Disabled{}
	}

	transcript, err := translog.New(translog.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcript.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	// Initialize services and handlers.
	workflow := intake.NewWorkflow(extractor, repo, notifier)
	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	chatHandler := api.NewChatHandler(workflow, sessions, repo, limiter, transcript)
	healthHandler := api.NewHealthHandler(repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	allowedOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(allowedOrigins))

	healthHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start session TTL sweeper.
	session.StartSweeper(ctx, sessions, cfg.SessionTTL)
	slog.Info("Session sweeper started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
