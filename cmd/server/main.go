// Command server runs the dataset insights API: upload, analysis
// pipeline, websocket progress stream and insight retrieval.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"datapulse/internal/config"
	"datapulse/internal/infrastructure"
	"datapulse/internal/operations"
	"datapulse/internal/services"
	"datapulse/internal/store"
	transport "datapulse/internal/transport/http"
	"datapulse/internal/websocket"
)

// version is stamped at build time via -ldflags
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to prepare directories: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	logger.Info("starting datapulse server",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port))

	db, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	fileStore := store.New(db, logger)
	if err := fileStore.Migrate(context.Background()); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	hub := websocket.NewHub(logger)

	orchestrator := operations.NewOrchestrator(fileStore, hub, operations.Config{
		MinConfidence: cfg.Processing.MinConfidence,
		MaxInsights:   cfg.Processing.MaxInsights,
	}, logger)
	queue := operations.NewQueue(cfg.Processing.Workers, cfg.Processing.QueueSize, orchestrator, logger)

	fileService := services.NewFileService(fileStore, cfg.Storage, logger)
	healthService := services.NewHealthService(version, db, hub, logger)

	router := transport.NewRouter(transport.RouterDeps{
		Config:        cfg,
		Logger:        logger,
		Uploader:      fileService,
		Records:       fileStore,
		Queue:         queue,
		Hub:           hub,
		HealthService: healthService,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		// Let queued runs finish before cutting off their broadcasts
		if err := queue.Stop(cfg.Server.ShutdownTimeout); err != nil {
			logger.Warn("processing queue did not drain in time",
				slog.String("error", err.Error()))
		}
		hub.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
