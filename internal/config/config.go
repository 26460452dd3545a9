// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server     ServerConfig
	Extractor  ExtractorConfig
	Ingestion  IngestionConfig
	Transcript TranscriptConfig
	Database   DatabaseConfig
	RabbitMQ   RabbitMQConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

// ServerConfig contains HTTP server configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	// WriteTimeout of zero means derive it from RequestBudget.
	WriteTimeout time.Duration
	APIKeys      []string
}

// ExtractorConfig controls how yt-dlp is invoked.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ExtractorConfig struct {
	Path      string
	Timeout   time.Duration
	WaitDelay time.Duration
	ExtraArgs []string
}

// IngestionConfig bounds the per-request video count.
type IngestionConfig struct {
	DefaultMaxVideos int
	MaxVideosLimit   int
}

// TranscriptConfig controls caption fetching.
type TranscriptConfig struct {
	HTTPTimeout time.Duration
	Concurrency int
	UserAgent   string
}

// DatabaseConfig contains database connection configuration for the run audit log.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Enabled        bool
	Host           string
	Name           string
	User           string
	Password       string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// ConnString returns a pgx connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// RabbitMQConfig contains RabbitMQ connection and queue configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Enabled        bool
	Host           string
	User           string
	Password       string
	Exchange       string
	Queue          string
	RoutingKey     string
	Port           int
	ConnectRetries int
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from a .env file, a config file and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the ingestion pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Extractor.Path == "" {
		return fmt.Errorf("extractor.path must not be empty")
	}
	if c.Extractor.Timeout <= 0 {
		return fmt.Errorf("extractor.timeout must be positive, got %s", c.Extractor.Timeout)
	}
	if c.Ingestion.MaxVideosLimit < 1 {
		return fmt.Errorf("ingestion.maxvideoslimit must be at least 1, got %d", c.Ingestion.MaxVideosLimit)
	}
	if c.Ingestion.DefaultMaxVideos < 1 || c.Ingestion.DefaultMaxVideos > c.Ingestion.MaxVideosLimit {
		return fmt.Errorf("ingestion.defaultmaxvideos must be within [1, %d], got %d",
			c.Ingestion.MaxVideosLimit, c.Ingestion.DefaultMaxVideos)
	}
	if c.Transcript.Concurrency < 1 {
		return fmt.Errorf("transcript.concurrency must be at least 1, got %d", c.Transcript.Concurrency)
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < c.RequestBudget() {
		return fmt.Errorf("server.writetimeout %s is shorter than the worst-case request time %s",
			c.Server.WriteTimeout, c.RequestBudget())
	}
	return nil
}

// writeTimeoutMargin covers response encoding and the audit writes that
// follow enrichment.
const writeTimeoutMargin = time.Minute

// RequestBudget is the longest a single ingestion request can take: the
// extractor ceiling and its kill grace, then one caption fetch per video at
// the configured concurrency.
func (c *Config) RequestBudget() time.Duration {
	concurrency := c.Transcript.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	waves := (c.Ingestion.MaxVideosLimit + concurrency - 1) / concurrency
	return c.Extractor.Timeout + c.Extractor.WaitDelay + time.Duration(waves)*c.Transcript.HTTPTimeout
}

// EffectiveWriteTimeout is the HTTP write timeout the server runs with.
func (c *Config) EffectiveWriteTimeout() time.Duration {
	if c.Server.WriteTimeout > 0 {
		return c.Server.WriteTimeout
	}
	return c.RequestBudget() + writeTimeoutMargin
}

func setDefaults() {
	// Server. A zero write timeout is derived from RequestBudget.
	viper.SetDefault("server.port", 3001)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)
	viper.SetDefault("server.readtimeout", 15*time.Second)
	viper.SetDefault("server.writetimeout", time.Duration(0))
	viper.SetDefault("server.apikeys", []string{})

	// Extractor
	viper.SetDefault("extractor.path", "yt-dlp")
	viper.SetDefault("extractor.timeout", 600*time.Second)
	viper.SetDefault("extractor.waitdelay", 5*time.Second)
	viper.SetDefault("extractor.extraargs", []string{})

	// Ingestion
	viper.SetDefault("ingestion.defaultmaxvideos", 10)
	viper.SetDefault("ingestion.maxvideoslimit", 100)

	// Transcript
	viper.SetDefault("transcript.httptimeout", 30*time.Second)
	viper.SetDefault("transcript.concurrency", 1)
	viper.SetDefault("transcript.useragent", "channel-ingestion/1.0")

	// Database
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "ingestion")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 2)
	viper.SetDefault("database.maxidletime", 10*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// RabbitMQ
	viper.SetDefault("rabbitmq.enabled", false)
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "youtube.ingestion")
	viper.SetDefault("rabbitmq.queue", "youtube.ingestion.runs")
	viper.SetDefault("rabbitmq.routingkey", "ingestion.*")
	viper.SetDefault("rabbitmq.connectretries", 5)

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
