// Package bootstrap builds the shared clients each binary starts with.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alfa546/pak-job-portal/internal/config"
	"github.com/alfa546/pak-job-portal/internal/ingest"
	"github.com/alfa546/pak-job-portal/internal/ingest/provider"
	"github.com/alfa546/pak-job-portal/shared/logger"
	"github.com/alfa546/pak-job-portal/shared/postgresql"
	"github.com/alfa546/pak-job-portal/shared/rabbitmq"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// PostgreSQLConfig maps the database section onto the client config using
// the resolved credential pair.
func PostgreSQLConfig(cfg *config.DatabaseConfig) (*postgresql.Config, error) {
	creds, err := cfg.ResolveCredentials()
	if err != nil {
		return nil, err
	}

	return &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            creds.User,
		Password:        creds.Password,
		Role:            creds.Role,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, nil
}

// InitPostgreSQL initializes the PostgreSQL database client
func InitPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig, err := PostgreSQLConfig(cfg)
	if err != nil {
		return nil, err
	}
	if dbConfig.Role == config.RoleAnon {
		logger.Warn("Service database credentials missing, using anon role")
	}

	return postgresql.NewClient(dbConfig, logger)
}

// RabbitMQConfig maps the rabbitmq section onto the client config
func RabbitMQConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
}

// InitRabbitMQ initializes the RabbitMQ client
func InitRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(RabbitMQConfig(cfg), logger)
}

// ProviderFactory returns a constructor for named providers sharing one HTTP
// client. Credentials are checked on every call so a missing key surfaces
// per request rather than at startup.
func ProviderFactory(cfg config.ProvidersConfig) func(name string) (provider.Provider, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	return func(name string) (provider.Provider, error) {
		p, err := provider.New(name, cfg, client)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		return p, nil
	}
}

// IngestOptions maps the ingest section onto orchestrator options
func IngestOptions(cfg *config.IngestConfig) ingest.Options {
	return ingest.Options{
		Keywords:     append([]string(nil), cfg.Keywords...),
		KeywordDelay: cfg.KeywordDelay,
		CountryName:  cfg.CountryName,
	}
}
