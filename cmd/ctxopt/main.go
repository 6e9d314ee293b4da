// ctxopt server — provides the HTTP API, runs the analysis worker pool,
// and manages session storage.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ctxopt/ctxopt/pkg/api"
	"github.com/ctxopt/ctxopt/pkg/config"
	"github.com/ctxopt/ctxopt/pkg/llm"
	"github.com/ctxopt/ctxopt/pkg/queue"
	"github.com/ctxopt/ctxopt/pkg/services"
	"github.com/ctxopt/ctxopt/pkg/storage"
	"github.com/ctxopt/ctxopt/pkg/version"
)

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	envPath := flag.String("env-file", ".env", "Path to the .env file")
	flag.Parse()

	// Load .env before reading any settings
	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envPath)
	}

	// 1. Load configuration
	settings, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(settings.LogLevel),
	})))

	slog.Info("Starting ctxopt",
		"version", version.Version,
		"addr", settings.Addr(),
		"session_dir", settings.SessionDir)

	ctx := context.Background()

	// 2. Initialize session storage
	store, err := storage.NewStore(settings.SessionDir)
	if err != nil {
		slog.Error("Failed to initialize session storage", "dir", settings.SessionDir, "error", err)
		os.Exit(1)
	}

	// 3. Create LLM client
	var cache *llm.ResponseCache
	if settings.UseLLMCache {
		cache = llm.NewResponseCache(settings.LLMCacheTTL)
	}
	llmClient := llm.NewClient(llm.ClientConfig{
		BaseURL:           settings.OpenAIBaseURL,
		APIKey:            settings.OpenAIAPIKey,
		Model:             settings.OpenAIModel,
		MaxTokens:         settings.MaxTokens,
		Temperature:       settings.Temperature,
		RequestsPerMinute: settings.RequestsPerMinute,
		UseCache:          settings.UseLLMCache,
		CacheTTL:          settings.LLMCacheTTL,
	}, cache)
	slog.Info("LLM client initialized", "model", settings.OpenAIModel, "cache", settings.UseLLMCache)

	// 4. Start the analysis worker pool (before the HTTP server)
	dispatcher := queue.NewDispatcher(settings.WorkerCount, settings.QueueSize)
	dispatcher.Start(ctx)

	// 5. Wire domain services
	sessionService := services.NewSessionService(store)
	analysisService := services.NewAnalysisService(sessionService, llmClient, dispatcher)
	slog.Info("Services initialized", "workers", settings.WorkerCount)

	// 6. Start HTTP server (non-blocking)
	httpServer := api.NewServer(settings, sessionService, analysisService, dispatcher, cache)

	errCh := make(chan error, 1)
	go func() {
		addr := settings.Addr()
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: drain workers, then stop the HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		dispatcher.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, abandoning in-flight analyses")
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
