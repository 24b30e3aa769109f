package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/fieldmark/internal/api"
	"github.com/dgallion1/fieldmark/internal/config"
	"github.com/dgallion1/fieldmark/internal/extract"
	"github.com/dgallion1/fieldmark/internal/pipeline"
	"github.com/dgallion1/fieldmark/internal/session"
	"github.com/dgallion1/fieldmark/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	stats := extract.NewLLMStats(time.Hour)
	provider, err := extract.NewProvider(ctx, extract.ProviderConfig{
		Provider:        cfg.Provider,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GeminiModel:     cfg.GeminiModel,
		MaxTokens:       cfg.ModelMaxTokens,
		Timeout:         cfg.ModelTimeout,
	}, stats, log)
	if err != nil {
		log.Error("model provider", "error", err)
		os.Exit(1)
	}
	if err := provider.Ready(); err != nil {
		// Uploads and manual editing still work; extraction requests fail with 400.
		log.Warn("model provider not ready", "provider", provider.Name(), "error", err)
	}

	store, err := storage.Open(cfg.DataDir, log)
	if err != nil {
		log.Error("snapshot store", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	sessions := session.NewManager(cfg.SessionTTL, log)
	orch := pipeline.NewOrchestrator(cfg, provider, store, log)
	orch.Start(ctx)
	go expireSessions(ctx, sessions, log)

	// Initialize HTTP server.
	srv := api.NewServer(sessions, orch, store, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		cancel()
		provider.Close()
		if err := store.Close(); err != nil {
			log.Error("close snapshot store", "error", err)
		}
	}()

	log.Info("starting fieldmark", "port", cfg.Port, "provider", provider.Name(), "data_dir", cfg.DataDir)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}

func expireSessions(ctx context.Context, sessions *session.Manager, log *slog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Cleanup(); n > 0 {
				log.Info("expired sessions", "count", n)
			}
		}
	}
}
