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

	"docforge/internal"
	"docforge/internal/config"
	"docforge/internal/handlers"
	"docforge/internal/progress"
	"docforge/internal/services"
	"docforge/internal/session"
	"docforge/internal/storage"

	"github.com/gin-gonic/gin"
)

func newLogger(cfg config.ServerConfig) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Server)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := internal.InitDB(cfg, logger)
	if err != nil {
		return err
	}
	defer internal.CloseDB(db)

	blobs, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer blobs.Close()

	pattern, err := services.CompilePattern(cfg.Generation.PlaceholderPattern)
	if err != nil {
		return err
	}
	converter, err := services.NewPDFService(cfg.Gotenberg, logger)
	if err != nil {
		return err
	}

	store := session.NewStore()
	hub := progress.NewHub(64, logger)
	sessions := services.NewSessionService(store, blobs, db, pattern, cfg.Generation.PreviewRows, logger)
	generation := services.NewGenerationService(converter, hub, services.NewJobRecorder(db, logger),
		cfg.Generation.Workers, cfg.Generation.FailureTolerance, logger)
	extraction := services.NewExtractionService(cfg.Extraction.Concurrency, logger)
	activity := services.NewActivityLogService(db, logger)

	janitor := session.NewJanitor(store, cfg.Generation.SessionTTL, func(ctx context.Context, id string) error {
		hub.Forget(id)
		return sessions.Purge(ctx, id)
	}, logger)
	janitor.Start()
	defer janitor.Stop()

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.New(sessions, generation, extraction, hub, logger), activity, cfg.Server)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "environment", cfg.Server.Environment,
			"storage", cfg.Storage.Backend, "database", db != nil, "gotenberg", cfg.Gotenberg.URL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
