package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every override so the host environment cannot leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ADZUNA_APP_ID", "ADZUNA_APP_KEY", "RAPIDAPI_KEY",
		"DATABASE_HOST", "DATABASE_PORT", "DATABASE_NAME",
		"DATABASE_SERVICE_USER", "DATABASE_SERVICE_PASSWORD",
		"DATABASE_ANON_USER", "DATABASE_ANON_PASSWORD",
		"RABBITMQ_HOST", "RABBITMQ_USER", "RABBITMQ_PASSWORD",
		"REDIS_URL",
	} {
		t.Setenv(key, "")
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "jobs_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "ingest_exchange"},
			Queue:    QueueConfig{Name: "ingest_runs"},
		},
		Worker: WorkerConfig{
			Concurrency:     1,
			PrefetchCount:   1,
			RunTimeout:      time.Minute,
			ShutdownTimeout: time.Second,
		},
		Ingest: IngestConfig{
			Keywords:     []string{"Medical"},
			KeywordDelay: time.Second,
			CountryName:  "Pakistan",
		},
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "localhost", cfg.Database.Host)
			assert.Equal(t, 5432, cfg.Database.Port)
			assert.Equal(t, "jobs_db", cfg.Database.Database)
			assert.Equal(t, "ingest_exchange", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "ingest_runs", cfg.RabbitMQ.Queue.Name)
			assert.Equal(t, "pak-jobs-api", cfg.App.Name)
			assert.Equal(t, []string{"Medical", "Teaching"}, cfg.Ingest.Keywords)
			assert.Equal(t, 1500*time.Millisecond, cfg.Ingest.KeywordDelay)
			assert.Equal(t, 20*time.Second, cfg.Providers.HTTPTimeout)
			assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
			assert.Equal(t, "@every 6h", cfg.Worker.Schedule)
		})
	}
}

func TestLoad_ExplicitZeroKeywordDelay(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/zero_delay.yaml")
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.Ingest.KeywordDelay)
	assert.Equal(t, []string{"Driver"}, cfg.Ingest.Keywords)
	assert.Equal(t, "Pakistan", cfg.Ingest.CountryName)
	require.NoError(t, cfg.ValidateIngestConfig())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/invalid_port.yaml")
	require.NoError(t, err)

	assert.Equal(t, DefaultKeywords, cfg.Ingest.Keywords)
	assert.Equal(t, time.Second, cfg.Ingest.KeywordDelay)
	assert.Equal(t, "Pakistan", cfg.Ingest.CountryName)
	assert.Equal(t, 15*time.Second, cfg.Providers.HTTPTimeout)
	assert.Equal(t, "https://api.adzuna.com/v1/api/jobs", cfg.Providers.Adzuna.BaseURL)
	assert.Equal(t, "pk", cfg.Providers.Adzuna.Country)
	assert.Equal(t, 50, cfg.Providers.Adzuna.ResultsPerPage)
	assert.Equal(t, "https://jsearch.p.rapidapi.com", cfg.Providers.JSearch.BaseURL)
	assert.Equal(t, "jsearch.p.rapidapi.com", cfg.Providers.JSearch.Host)
	assert.Equal(t, 1, cfg.Worker.Concurrency)
	assert.Equal(t, 1, cfg.Worker.PrefetchCount)
	assert.Equal(t, "adzuna", cfg.Worker.ScheduleProvider)

	// defaults must not alias the package-level slice
	cfg.Ingest.Keywords[0] = "Changed"
	assert.Equal(t, "Medical", DefaultKeywords[0])
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADZUNA_APP_ID", "env-app-id")
	t.Setenv("ADZUNA_APP_KEY", "env-app-key")
	t.Setenv("RAPIDAPI_KEY", "rapid-key")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("DATABASE_PORT", "6543")
	t.Setenv("DATABASE_SERVICE_USER", "svc")
	t.Setenv("DATABASE_SERVICE_PASSWORD", "svc-pass")
	t.Setenv("RABBITMQ_USER", "rabbit")
	t.Setenv("RABBITMQ_PASSWORD", "rabbit-pass")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "env-app-id", cfg.Providers.Adzuna.AppID)
	assert.Equal(t, "env-app-key", cfg.Providers.Adzuna.AppKey)
	assert.Equal(t, "rapid-key", cfg.Providers.JSearch.APIKey)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "svc", cfg.Database.ServiceUser)
	assert.Equal(t, "svc-pass", cfg.Database.ServicePassword)
	assert.Equal(t, "rabbit", cfg.RabbitMQ.User)
	assert.Equal(t, "rabbit-pass", cfg.RabbitMQ.Password)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
}

func TestLoad_InvalidDatabasePortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_PORT", "five")

	cfg, err := Load("testdata/valid_config.yaml")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_PORT must be an integer")
}

func TestDatabaseConfig_ResolveCredentials(t *testing.T) {
	tests := []struct {
		name    string
		db      DatabaseConfig
		want    Credentials
		wantErr bool
	}{
		{
			name: "service role preferred",
			db: DatabaseConfig{
				ServiceUser: "svc", ServicePassword: "s",
				AnonUser: "anon", AnonPassword: "a",
			},
			want: Credentials{User: "svc", Password: "s", Role: RoleService},
		},
		{
			name: "falls back to anon when service password missing",
			db: DatabaseConfig{
				ServiceUser: "svc",
				AnonUser:    "anon", AnonPassword: "a",
			},
			want: Credentials{User: "anon", Password: "a", Role: RoleAnon},
		},
		{
			name:    "no usable pair",
			db:      DatabaseConfig{AnonUser: "anon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.db.ResolveCredentials()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingDatabaseCredentials)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviderCredentials(t *testing.T) {
	assert.False(t, AdzunaConfig{AppID: "id"}.HasCredentials())
	assert.True(t, AdzunaConfig{AppID: "id", AppKey: "key"}.HasCredentials())
	assert.False(t, JSearchConfig{}.HasCredentials())
	assert.True(t, JSearchConfig{APIKey: "k"}.HasCredentials())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			errString: "database host is required",
		},
		{
			name:      "invalid database port",
			mutate:    func(c *Config) { c.Database.Port = 0 },
			errString: "invalid database port",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			errString: "database name is required",
		},
		{
			name:      "no keywords",
			mutate:    func(c *Config) { c.Ingest.Keywords = nil },
			errString: "ingest keywords must not be empty",
		},
		{
			name:      "blank keyword",
			mutate:    func(c *Config) { c.Ingest.Keywords = []string{"Medical", ""} },
			errString: "ingest keyword 1 is empty",
		},
		{
			name:      "negative delay",
			mutate:    func(c *Config) { c.Ingest.KeywordDelay = -time.Second },
			errString: "keyword_delay must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			errString: "rabbitmq queue name is required",
		},
		{
			name: "write timeout shorter than fetch batch",
			mutate: func(c *Config) {
				c.Ingest.Keywords = DefaultKeywords
				c.Providers.HTTPTimeout = 15 * time.Second
				c.Server.WriteTimeout = 120 * time.Second
			},
			errString: "server write_timeout 2m0s is shorter than the fetch-jobs batch budget 2m7s",
		},
		{
			name: "write timeout covers fetch batch",
			mutate: func(c *Config) {
				c.Ingest.Keywords = DefaultKeywords
				c.Providers.HTTPTimeout = 15 * time.Second
				c.Server.WriteTimeout = 150 * time.Second
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "zero prefetch",
			mutate:    func(c *Config) { c.Worker.PrefetchCount = 0 },
			errString: "worker prefetch_count must be greater than 0",
		},
		{
			name:      "missing run timeout",
			mutate:    func(c *Config) { c.Worker.RunTimeout = 0 },
			errString: "worker run_timeout must be greater than 0",
		},
		{
			name: "unknown schedule provider",
			mutate: func(c *Config) {
				c.Worker.Schedule = "@every 6h"
				c.Worker.ScheduleProvider = "indeed"
			},
			errString: "worker schedule_provider must be adzuna or jsearch",
		},
		{
			name:   "server port is not checked",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	clearEnv(t)

	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestShippedServiceConfigs(t *testing.T) {
	clearEnv(t)

	api, err := Load("../../configs/api-service/config.yaml")
	require.NoError(t, err)
	require.NoError(t, api.ValidateAPIConfig())
	assert.GreaterOrEqual(t, api.Server.WriteTimeout, api.FetchBatchBudget())

	worker, err := Load("../../configs/worker-service/config.yaml")
	require.NoError(t, err)
	require.NoError(t, worker.ValidateWorkerConfig())
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}
