// Package config provides configuration management for the quarry service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Hosting     HostingConfig     `mapstructure:"hosting"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Git         GitConfig         `mapstructure:"git"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Resilience  ResilienceConfig  `mapstructure:"resilience"`
	Downloads   DownloadsConfig   `mapstructure:"downloads"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HostingConfig holds the git hosting service connection.
type HostingConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	User         string        `mapstructure:"user"`
	Token        string        `mapstructure:"token"`
	OrgEmail     string        `mapstructure:"org_email"`
	OrgLocation  string        `mapstructure:"org_location"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
}

// StorageConfig holds the S3-compatible data remote used by dvc.
type StorageConfig struct {
	RemoteURL       string `mapstructure:"remote_url"`
	EndpointURL     string `mapstructure:"endpoint_url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// GitConfig holds the commit identity used for generated commits.
type GitConfig struct {
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
}

// DatabaseConfig holds PostgreSQL registry configuration. An empty host
// selects the in-memory registry.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// RedisConfig holds the idempotency store configuration. An empty host
// selects the in-memory store.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	KeyTTL   time.Duration `mapstructure:"key_ttl"`
}

// CacheConfig holds the file-tree cache configuration.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	MaxSize int           `mapstructure:"max_size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ResilienceConfig holds retry and circuit breaker configuration.
type ResilienceConfig struct {
	HTTPMaxAttempts  int           `mapstructure:"http_max_attempts"`
	HTTPBaseDelay    time.Duration `mapstructure:"http_base_delay"`
	GitMaxAttempts   int           `mapstructure:"git_max_attempts"`
	GitBaseDelay     time.Duration `mapstructure:"git_base_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

// DownloadsConfig holds the parallel download settings for version creation.
type DownloadsConfig struct {
	MaxWorkers int           `mapstructure:"max_workers"`
	QueueSize  int           `mapstructure:"queue_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/quarry/")
	}

	// Read environment variables
	v.SetEnvPrefix("QUARRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, use defaults/env)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Hosting defaults
	v.SetDefault("hosting.base_url", "http://localhost:3000")
	v.SetDefault("hosting.user", "quarry")
	v.SetDefault("hosting.org_email", "quarry@localhost")
	v.SetDefault("hosting.timeout", "30s")
	v.SetDefault("hosting.max_idle_conns", 16)

	// Git identity defaults
	v.SetDefault("git.author_name", "quarry")
	v.SetDefault("git.author_email", "quarry@localhost")

	// Database defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "quarry")
	v.SetDefault("database.user", "quarry")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)

	// Redis defaults
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_ttl", "24h")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size", 1024)
	v.SetDefault("cache.ttl", "10m")

	// Resilience defaults
	v.SetDefault("resilience.http_max_attempts", 4)
	v.SetDefault("resilience.http_base_delay", "500ms")
	v.SetDefault("resilience.git_max_attempts", 4)
	v.SetDefault("resilience.git_base_delay", "2s")
	v.SetDefault("resilience.max_delay", "30s")
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.recovery_timeout", "60s")

	// Downloads defaults
	v.SetDefault("downloads.max_workers", 4)
	v.SetDefault("downloads.queue_size", 64)
	v.SetDefault("downloads.timeout", "10m")

	// Rate limiter defaults
	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 100.0)
	v.SetDefault("rate_limiter.burst_size", 50)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Hosting.BaseURL == "" {
		return fmt.Errorf("hosting base URL is required")
	}

	if c.Hosting.Timeout <= 0 {
		return fmt.Errorf("hosting timeout must be positive")
	}

	if c.Resilience.HTTPMaxAttempts < 1 || c.Resilience.GitMaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}

	if c.Resilience.FailureThreshold <= 0 {
		return fmt.Errorf("breaker failure threshold must be positive")
	}

	if c.Downloads.MaxWorkers <= 0 {
		return fmt.Errorf("downloads max workers must be positive")
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	return nil
}
