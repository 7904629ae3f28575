package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/alfa546/pak-job-portal/internal/api/cache"
	"github.com/alfa546/pak-job-portal/internal/api/handler"
	"github.com/alfa546/pak-job-portal/internal/api/router"
	apistorage "github.com/alfa546/pak-job-portal/internal/api/storage"
	"github.com/alfa546/pak-job-portal/internal/bootstrap"
	"github.com/alfa546/pak-job-portal/internal/config"
	ingeststorage "github.com/alfa546/pak-job-portal/internal/ingest/storage"
	"github.com/alfa546/pak-job-portal/shared/postgresql"
	"github.com/alfa546/pak-job-portal/shared/rabbitmq"
	"github.com/alfa546/pak-job-portal/shared/redis"
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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
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

	// Redis is optional; the company directory works uncached without it
	var redisClient *goredis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redis.NewClient(context.Background(), cfg.Redis.URL, appLogger.Logger)
		if err != nil {
			appLogger.Warn("Redis unavailable, company cache disabled", slog.Any("error", err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	r := initRouter(cfg, appLogger.Logger, dbClient, rabbitClient, redisClient)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.String("db_role", dbClient.Role()),
		slog.Bool("cache_enabled", redisClient != nil),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRouter wires storage, queue, cache and providers into the Gin router
func initRouter(cfg *config.Config, logger *slog.Logger, dbClient *postgresql.Client, rabbitClient *rabbitmq.Client, redisClient *goredis.Client) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &handler.Dependencies{
		Logger:      logger,
		Store:       apistorage.NewStorage(dbClient.GetDB()),
		Publisher:   rabbitClient,
		Providers:   bootstrap.ProviderFactory(cfg.Providers),
		Sink:        ingeststorage.NewStorage(dbClient.GetDB(), logger),
		IngestOpts:  bootstrap.IngestOptions(&cfg.Ingest),
		ServiceName: cfg.App.Name,
	}
	if redisClient != nil {
		deps.Cache = cache.NewCompanyCache(redisClient, cfg.Redis.CacheTTL)
	}

	return router.SetupRouter(deps)
}
