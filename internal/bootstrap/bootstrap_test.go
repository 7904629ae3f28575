package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfa546/pak-job-portal/internal/config"
	"github.com/alfa546/pak-job-portal/internal/ingest/domain"
	"github.com/alfa546/pak-job-portal/internal/ingest/provider"
)

func TestPostgreSQLConfig(t *testing.T) {
	t.Run("service role preferred", func(t *testing.T) {
		cfg := &config.DatabaseConfig{
			Host: "db", Port: 5432, Database: "jobs",
			ServiceUser: "svc", ServicePassword: "s3cret",
			AnonUser: "anon", AnonPassword: "anon",
		}
		pg, err := PostgreSQLConfig(cfg)
		require.NoError(t, err)
		assert.Equal(t, "svc", pg.User)
		assert.Equal(t, config.RoleService, pg.Role)
		assert.Equal(t, "jobs", pg.Database)
	})

	t.Run("anon fallback", func(t *testing.T) {
		pg, err := PostgreSQLConfig(&config.DatabaseConfig{AnonUser: "anon", AnonPassword: "pw"})
		require.NoError(t, err)
		assert.Equal(t, config.RoleAnon, pg.Role)
	})

	t.Run("no credentials", func(t *testing.T) {
		_, err := PostgreSQLConfig(&config.DatabaseConfig{})
		assert.ErrorIs(t, err, config.ErrMissingDatabaseCredentials)
	})
}

func TestRabbitMQConfig(t *testing.T) {
	rc := RabbitMQConfig(&config.RabbitMQConfig{
		Host:       "mq",
		Port:       5672,
		Exchange:   config.ExchangeConfig{Name: "ingest_exchange", Type: "direct", Durable: true},
		Queue:      config.QueueConfig{Name: "ingest_runs", Durable: true},
		RoutingKey: "ingest.run",
		Publish:    config.PublishConfig{RetryAttempts: 3, RetryInterval: time.Second, BackoffMultiplier: 2},
	})

	assert.Equal(t, "ingest_exchange", rc.ExchangeName)
	assert.Equal(t, "ingest_runs", rc.QueueName)
	assert.True(t, rc.QueueDurable)
	assert.Equal(t, 3, rc.PublishRetries)
	assert.InDelta(t, 2.0, rc.PublishBackoffMult, 0.001)
}

func TestProviderFactory(t *testing.T) {
	factory := ProviderFactory(config.ProvidersConfig{
		HTTPTimeout: time.Second,
		JSearch:     config.JSearchConfig{BaseURL: "http://localhost", Host: "jsearch", APIKey: "key"},
	})

	p, err := factory(provider.NameJSearch)
	require.NoError(t, err)
	assert.Equal(t, provider.NameJSearch, p.Name())

	_, err = factory(provider.NameAdzuna)
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)

	_, err = factory("indeed")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestIngestOptions(t *testing.T) {
	cfg := &config.IngestConfig{Keywords: []string{"Driver"}, KeywordDelay: time.Second, CountryName: "Pakistan"}
	opts := IngestOptions(cfg)
	assert.Equal(t, []string{"Driver"}, opts.Keywords)

	opts.Keywords[0] = "changed"
	assert.Equal(t, "Driver", cfg.Keywords[0])
}
