// Package config loads the sysvipc command configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/richinsley/sysvipc"
	"github.com/richinsley/sysvipc/internal/logging"
)

// Config holds all command configuration.
type Config struct {
	Logging LogConfig
	Retry   RetryConfig
	Metrics MetricsConfig
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"SYSVIPC_LOG_LEVEL" default:"warn"`
	Development bool   `envconfig:"SYSVIPC_LOG_DEV" default:"false"`
}

// RetryConfig holds the polling schedule for blocking operations.
type RetryConfig struct {
	InitialInterval time.Duration `envconfig:"SYSVIPC_POLL_INITIAL" default:"500us"`
	MaxInterval     time.Duration `envconfig:"SYSVIPC_POLL_MAX" default:"50ms"`
	Multiplier      float64       `envconfig:"SYSVIPC_POLL_MULTIPLIER" default:"1.5"`
}

// MetricsConfig holds the Prometheus endpoint configuration. An empty
// address disables the endpoint.
type MetricsConfig struct {
	Address string `envconfig:"SYSVIPC_METRICS_ADDR" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Retry.Multiplier < 1 {
		return nil, fmt.Errorf("failed to load config: SYSVIPC_POLL_MULTIPLIER must be at least 1, got %v", cfg.Retry.Multiplier)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	policy := sysvipc.DefaultRetryPolicy()
	return &Config{
		Logging: LogConfig{
			Level:       "warn",
			Development: false,
		},
		Retry: RetryConfig{
			InitialInterval: policy.InitialInterval,
			MaxInterval:     policy.MaxInterval,
			Multiplier:      policy.Multiplier,
		},
	}
}

// RetryPolicy converts the retry settings for sysvipc.WithRetryPolicy.
func (c *Config) RetryPolicy() sysvipc.RetryPolicy {
	return sysvipc.RetryPolicy{
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		Multiplier:      c.Retry.Multiplier,
	}
}

// LoggerConfig converts the logging settings for logging.New.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if c.Logging.Development {
		cfg = logging.DevelopmentConfig()
	}
	if c.Logging.Level != "" {
		cfg.Level = c.Logging.Level
	}
	return cfg
}
