package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the DuraGraph control plane
type Config struct {
	// Server configuration
	Port     int    `env:"DURAGRAPH_PORT" envDefault:"8081"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Postgres configuration
	Postgres PostgresConfig

	// NATS configuration
	NATS NATSConfig

	// Worker registry configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// PostgresConfig holds datastore connection configuration
type PostgresConfig struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"duragraph"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"duragraph"`
	DB       string `env:"POSTGRES_DB" envDefault:"duragraph"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
}

// NATSConfig holds message broker configuration
type NATSConfig struct {
	URL    string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	Stream string `env:"NATS_STREAM" envDefault:"DURAGRAPH"`
}

// WorkerConfig holds worker registry configuration
type WorkerConfig struct {
	HeartbeatTTL  time.Duration `env:"WORKER_HEARTBEAT_TTL" envDefault:"30s"`
	SweepInterval time.Duration `env:"WORKER_SWEEP_INTERVAL" envDefault:"10s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunExecutionTimeout time.Duration `env:"TIMEOUT_RUN_EXECUTION" envDefault:"600s"` // 10 minutes
	ShutdownTimeout     time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
		return fmt.Errorf("invalid postgres port: %d", c.Postgres.Port)
	}
	if c.Postgres.User == "" || c.Postgres.DB == "" {
		return fmt.Errorf("postgres user and database are required")
	}

	if c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}
	if c.NATS.Stream == "" {
		return fmt.Errorf("NATS stream name is required")
	}

	if c.Workers.HeartbeatTTL <= 0 {
		return fmt.Errorf("worker heartbeat TTL must be positive")
	}
	if c.Workers.SweepInterval <= 0 {
		return fmt.Errorf("worker sweep interval must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// ListenAddr returns the HTTP server listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// PostgresDSN returns the datastore connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password, c.Postgres.DB, c.Postgres.SSLMode)
}
