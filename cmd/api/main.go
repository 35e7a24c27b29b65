// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"civicpulse/internal/adapter/events"
	"civicpulse/internal/adapter/gazetteer"
	"civicpulse/internal/adapter/storage"
	"civicpulse/internal/bootstrap"
	"civicpulse/internal/config"
	"civicpulse/internal/logging"
	"civicpulse/internal/server"
	"civicpulse/internal/service/aggregation"
	geoService "civicpulse/internal/service/geo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "civicpulse api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Environment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	db, err := bootstrap.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	natsConn, err := bootstrap.ConnectNATS(cfg.NATS, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConn.Close()

	gz, err := gazetteer.Load(cfg.Gazetteer.Path)
	if err != nil {
		return fmt.Errorf("failed to load gazetteer: %w", err)
	}
	logger.Info("Gazetteer loaded", zap.Int("localities", gz.Len()))

	// Initialize storage adapters
	recordStore := storage.NewRecordStore(db)
	rollupStore := storage.NewRollupStore(db)

	// Initialize services
	resolver := geoService.NewResolver(gz, nil)
	tagger := geoService.NewTagger(resolver, recordStore, recordStore, logger.Named("tagger"))

	engine := aggregation.NewEngine(
		recordStore,
		rollupStore,
		gz,
		events.NewPublisher(natsConn),
		aggregation.EngineConfig{
			Workers:       cfg.Aggregation.Workers,
			FetchTimeout:  cfg.Aggregation.FetchTimeout,
			UpsertTimeout: cfg.Aggregation.UpsertTimeout,
		},
		logger.Named("aggregation"),
	)

	scheduler := aggregation.NewScheduler(
		engine,
		tagger,
		aggregation.SchedulerConfig{
			Interval: cfg.Aggregation.ScheduleInterval,
			TagBatch: cfg.Aggregation.TagBatch,
		},
		logger.Named("scheduler"),
	)

	if cfg.Aggregation.SchedulerEnabled {
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// Initialize HTTP server
	httpServer := server.NewServer(
		cfg.Server,
		server.Dependencies{
			Resolver:   resolver,
			Aggregator: engine,
			Rollups:    rollupStore,
			Feed:       natsConn,
		},
		logger.Named("http"),
	)

	// Start HTTP server
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case <-shutdown:
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		logger.Error("HTTP server error", zap.Error(err))
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("Shutting down services")

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Stop scheduler
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
