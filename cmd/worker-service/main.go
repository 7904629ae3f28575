package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/alfa546/pak-job-portal/internal/bootstrap"
	"github.com/alfa546/pak-job-portal/internal/config"
	ingeststorage "github.com/alfa546/pak-job-portal/internal/ingest/storage"
	"github.com/alfa546/pak-job-portal/internal/worker"
	workerstorage "github.com/alfa546/pak-job-portal/internal/worker/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	runStore := workerstorage.NewStorage(dbClient.GetDB(), appLogger.Logger)

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Logger,
		Store:         runStore,
		Broker:        rabbitClient,
		Providers:     bootstrap.ProviderFactory(cfg.Providers),
		Sink:          ingeststorage.NewStorage(dbClient.GetDB(), appLogger.Logger),
		IngestOpts:    bootstrap.IngestOptions(&cfg.Ingest),
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.Worker.PrefetchCount,
		RunTimeout:    cfg.Worker.RunTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var scheduler *worker.Scheduler
	if cfg.Worker.Schedule != "" {
		scheduler, err = worker.NewScheduler(cfg.Worker.Schedule, cfg.Worker.ScheduleProvider, runStore, rabbitClient, appLogger.Logger)
		if err != nil {
			return err
		}
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully",
		slog.String("worker_id", workerInstance.ID()),
		slog.String("db_role", dbClient.Role()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error", slog.Any("error", err))
		return err
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	shutdownTimeout := cfg.Worker.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}
