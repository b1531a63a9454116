// TaskVoice - voice command processing server
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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskvoice/backend/internal/api"
	"github.com/taskvoice/backend/internal/channel"
	"github.com/taskvoice/backend/internal/config"
	"github.com/taskvoice/backend/internal/identity"
	"github.com/taskvoice/backend/internal/ledger"
	"github.com/taskvoice/backend/internal/middleware"
	"github.com/taskvoice/backend/internal/notify"
	"github.com/taskvoice/backend/internal/provider"
	"github.com/taskvoice/backend/internal/session"
	"github.com/taskvoice/backend/internal/store"
	"github.com/taskvoice/backend/internal/voice"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	st, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := st.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Optional AI providers. Without a transcription backend only the
	// transcript-based endpoints work, so audio processing fails fast.
	var transcriber provider.Transcriber
	if cfg.TranscriptionEnabled() {
		transcriber = provider.NewWhisperTranscriber(cfg.OpenAIAPIKey, cfg.OpenAITranscribeModel)
		slog.Info("Transcription enabled", "model", cfg.OpenAITranscribeModel)
	} else {
		transcriber = provider.Unavailable{}
		slog.Warn("Transcription disabled (OPENAI_API_KEY not set)")
	}

	var fallback provider.FallbackClassifier
	var generator provider.ResponseGenerator
	if cfg.GenerativeEnabled() {
		claude := provider.NewClaude(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		fallback = claude
		generator = claude
		slog.Info("Generative features enabled", "model", cfg.AnthropicModel)
	} else {
		slog.Warn("Generative features disabled (ANTHROPIC_API_KEY not set)")
	}

	// Assemble the pipeline.
	led := ledger.New(st)
	sink := notify.NewStoreSink(st)
	processor := voice.NewProcessor(
		voice.NewValidator(cfg.MinAudioSize, cfg.MaxAudioSize),
		transcriber,
		voice.NewClassifier(fallback, cfg.ConfidenceThreshold),
		voice.NewDispatcher(st),
		voice.NewResponder(generator),
		led,
		sink,
		cfg.ProviderTimeout,
	)

	registry := session.NewRegistry(processor, cfg.SessionCapacity, cfg.CommandQueueSize)
	sweeper := session.NewSweeper(registry, cfg.SessionIdleAfter, cfg.SessionTimeout, cfg.SessionSweepInterval)

	// Initialize handlers.
	baseHandler := api.NewHandler(st, registry, processor, led)
	voiceHandler := api.NewVoiceHandler(baseHandler, cfg.DefaultLanguage)
	wsHandler := channel.NewWebSocketHandler(registry, cfg.DefaultLanguage, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(st, cfg.DefaultLanguage, cfg.IsDevelopment()))

	r.Get("/health", baseHandler.Health)
	r.Get("/api/me", baseHandler.Me)
	r.Handle("/metrics", promhttp.Handler())

	voiceHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/voice", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket sessions hold the connection open
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)

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

	registry.CloseAll()
	slog.Info("Server stopped successfully")
}
