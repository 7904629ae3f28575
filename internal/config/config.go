package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Credential roles, in order of preference.
const (
	RoleService = "service"
	RoleAnon    = "anon"
)

// ErrMissingDatabaseCredentials is returned when neither the service nor the
// anon role has a complete user/password pair.
var ErrMissingDatabaseCredentials = errors.New("database credentials are not configured")

// DefaultKeywords drive one provider query each per ingestion run.
var DefaultKeywords = []string{
	"Medical",
	"Teaching",
	"Accounting",
	"Sales",
	"Driver",
	"Construction",
	"Engineering",
	"Nursing",
}

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Worker    WorkerConfig    `yaml:"worker"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration. Two credential
// pairs may be supplied: the privileged service role used for writes and the
// restricted anon role used as a fallback.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ServiceUser     string        `yaml:"service_user"`
	ServicePassword string        `yaml:"service_password"`
	AnonUser        string        `yaml:"anon_user"`
	AnonPassword    string        `yaml:"anon_password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// Credentials is the single user/password pair chosen at startup.
type Credentials struct {
	User     string
	Password string
	Role     string
}

// ResolveCredentials picks the service role when fully configured, otherwise
// falls back to the anon role.
func (d *DatabaseConfig) ResolveCredentials() (Credentials, error) {
	if d.ServiceUser != "" && d.ServicePassword != "" {
		return Credentials{User: d.ServiceUser, Password: d.ServicePassword, Role: RoleService}, nil
	}
	if d.AnonUser != "" && d.AnonPassword != "" {
		return Credentials{User: d.AnonUser, Password: d.AnonPassword, Role: RoleAnon}, nil
	}
	return Credentials{}, ErrMissingDatabaseCredentials
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// RedisConfig configures the optional company directory cache. An empty URL
// disables caching.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	PrefetchCount   int           `yaml:"prefetch_count"`
	RunTimeout      time.Duration `yaml:"run_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Schedule is a robfig/cron spec; empty disables scheduled runs.
	Schedule         string `yaml:"schedule"`
	ScheduleProvider string `yaml:"schedule_provider"`
}

// IngestConfig controls the keyword batch.
type IngestConfig struct {
	Keywords     []string      `yaml:"keywords"`
	KeywordDelay time.Duration `yaml:"keyword_delay"`
	CountryName  string        `yaml:"country_name"`

	// delaySet records an explicit keyword_delay so 0s is kept
	delaySet bool
}

// DefaultKeywordDelay applies when keyword_delay is absent from the file.
const DefaultKeywordDelay = time.Second

// UnmarshalYAML decodes the section and notes whether keyword_delay was given.
func (i *IngestConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain IngestConfig
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*i = IngestConfig(p)

	for k := 0; k+1 < len(value.Content); k += 2 {
		if value.Content[k].Value == "keyword_delay" {
			i.delaySet = true
		}
	}
	return nil
}

// ProvidersConfig holds the job-search API settings.
type ProvidersConfig struct {
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	Adzuna      AdzunaConfig  `yaml:"adzuna"`
	JSearch     JSearchConfig `yaml:"jsearch"`
}

// AdzunaConfig configures the Adzuna search client.
type AdzunaConfig struct {
	BaseURL        string `yaml:"base_url"`
	Country        string `yaml:"country"`
	AppID          string `yaml:"app_id"`
	AppKey         string `yaml:"app_key"`
	ResultsPerPage int    `yaml:"results_per_page"`
}

// HasCredentials reports whether both the app id and key are set.
func (a AdzunaConfig) HasCredentials() bool {
	return a.AppID != "" && a.AppKey != ""
}

// JSearchConfig configures the JSearch (RapidAPI) client.
type JSearchConfig struct {
	BaseURL string `yaml:"base_url"`
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key"`
}

// HasCredentials reports whether the RapidAPI key is set.
func (j JSearchConfig) HasCredentials() bool {
	return j.APIKey != ""
}

// Load reads and parses the configuration file, fills defaults, and applies
// environment overrides.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if len(c.Ingest.Keywords) == 0 {
		c.Ingest.Keywords = append([]string(nil), DefaultKeywords...)
	}
	if !c.Ingest.delaySet && c.Ingest.KeywordDelay == 0 {
		c.Ingest.KeywordDelay = DefaultKeywordDelay
	}
	if c.Ingest.CountryName == "" {
		c.Ingest.CountryName = "Pakistan"
	}

	if c.Providers.HTTPTimeout == 0 {
		c.Providers.HTTPTimeout = 15 * time.Second
	}
	if c.Providers.Adzuna.BaseURL == "" {
		c.Providers.Adzuna.BaseURL = "https://api.adzuna.com/v1/api/jobs"
	}
	if c.Providers.Adzuna.Country == "" {
		c.Providers.Adzuna.Country = "pk"
	}
	if c.Providers.Adzuna.ResultsPerPage == 0 {
		c.Providers.Adzuna.ResultsPerPage = 50
	}
	if c.Providers.JSearch.BaseURL == "" {
		c.Providers.JSearch.BaseURL = "https://jsearch.p.rapidapi.com"
	}
	if c.Providers.JSearch.Host == "" {
		c.Providers.JSearch.Host = "jsearch.p.rapidapi.com"
	}

	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}

	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.PrefetchCount == 0 {
		c.Worker.PrefetchCount = c.Worker.Concurrency
	}
	if c.Worker.ScheduleProvider == "" {
		c.Worker.ScheduleProvider = "adzuna"
	}
}

// applyEnv overrides secrets and endpoints from the environment. Values set in
// the environment always win over the file.
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("ADZUNA_APP_ID", &c.Providers.Adzuna.AppID)
	setString("ADZUNA_APP_KEY", &c.Providers.Adzuna.AppKey)
	setString("RAPIDAPI_KEY", &c.Providers.JSearch.APIKey)

	setString("DATABASE_HOST", &c.Database.Host)
	setString("DATABASE_NAME", &c.Database.Database)
	setString("DATABASE_SERVICE_USER", &c.Database.ServiceUser)
	setString("DATABASE_SERVICE_PASSWORD", &c.Database.ServicePassword)
	setString("DATABASE_ANON_USER", &c.Database.AnonUser)
	setString("DATABASE_ANON_PASSWORD", &c.Database.AnonPassword)

	setString("RABBITMQ_HOST", &c.RabbitMQ.Host)
	setString("RABBITMQ_USER", &c.RabbitMQ.User)
	setString("RABBITMQ_PASSWORD", &c.RabbitMQ.Password)

	setString("REDIS_URL", &c.Redis.URL)

	if v, ok := os.LookupEnv("DATABASE_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DATABASE_PORT must be an integer, got %q", v)
		}
		c.Database.Port = port
	}

	return nil
}

// Validate checks the settings shared by every binary.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return c.ValidateIngestConfig()
}

// ValidateAPIConfig checks the API service settings.
func (c *Config) ValidateAPIConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	// GET /api/fetch-jobs runs the whole batch inside one response
	if budget := c.FetchBatchBudget(); c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < budget {
		return fmt.Errorf("server write_timeout %s is shorter than the fetch-jobs batch budget %s", c.Server.WriteTimeout, budget)
	}

	return c.validateRabbitMQ()
}

// FetchBatchBudget is the worst-case duration of one keyword batch: every
// request hitting the HTTP timeout plus the delays between keywords.
func (c *Config) FetchBatchBudget() time.Duration {
	n := time.Duration(len(c.Ingest.Keywords))
	if n == 0 {
		return 0
	}
	return n*c.Providers.HTTPTimeout + (n-1)*c.Ingest.KeywordDelay
}

// ValidateWorkerConfig checks the worker service settings.
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.PrefetchCount <= 0 {
		return fmt.Errorf("worker prefetch_count must be greater than 0")
	}

	if c.Worker.RunTimeout <= 0 {
		return fmt.Errorf("worker run_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.Schedule != "" && c.Worker.ScheduleProvider != "adzuna" && c.Worker.ScheduleProvider != "jsearch" {
		return fmt.Errorf("worker schedule_provider must be adzuna or jsearch, got %q", c.Worker.ScheduleProvider)
	}

	return c.validateRabbitMQ()
}

// ValidateIngestConfig checks the keyword batch settings.
func (c *Config) ValidateIngestConfig() error {
	if len(c.Ingest.Keywords) == 0 {
		return fmt.Errorf("ingest keywords must not be empty")
	}

	for i, kw := range c.Ingest.Keywords {
		if kw == "" {
			return fmt.Errorf("ingest keyword %d is empty", i)
		}
	}

	if c.Ingest.KeywordDelay < 0 {
		return fmt.Errorf("ingest keyword_delay must not be negative")
	}

	if c.Ingest.CountryName == "" {
		return fmt.Errorf("ingest country_name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
