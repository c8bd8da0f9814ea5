package config

import (
	"fmt"
	"time"
	// Embedded zone database for images without /usr/share/zoneinfo.
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

// Feed drivers.
const (
	FeedPostgres = "postgres"
	FeedRedis    = "redis"
)

// Config holds all configuration for the chat-backend service.
type Config struct {
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Feed      FeedConfig
	Webhook   WebhookConfig
	Display   DisplayConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port string `envconfig:"SERVER_PORT" default:"8080"`
	// JWTSecret enables operator token checks on /inbox when set.
	JWTSecret string `envconfig:"JWT_SECRET"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	DSN     string `envconfig:"DATABASE_DSN" required:"true"`
	Migrate bool   `envconfig:"DATABASE_MIGRATE" default:"true"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URI string `envconfig:"REDIS_URI" required:"true"`
}

// FeedConfig selects and tunes the chat history change feed.
type FeedConfig struct {
	Driver    string        `envconfig:"FEED_DRIVER" default:"postgres"`
	RetryBase time.Duration `envconfig:"FEED_RETRY_BASE" default:"500ms"`
	RetryMax  time.Duration `envconfig:"FEED_RETRY_MAX" default:"30s"`
}

// WebhookConfig holds the n8n webhook settings.
type WebhookConfig struct {
	BaseURL string        `envconfig:"WEBHOOK_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"30s"`
}

// DisplayConfig controls how times are rendered for the dashboard.
type DisplayConfig struct {
	Timezone string `envconfig:"DISPLAY_TIMEZONE" default:"America/Sao_Paulo"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration for logical errors beyond required fields.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	switch c.Feed.Driver {
	case FeedPostgres, FeedRedis:
	default:
		return fmt.Errorf("FEED_DRIVER must be %q or %q, got %q", FeedPostgres, FeedRedis, c.Feed.Driver)
	}
	if c.Feed.RetryBase <= 0 || c.Feed.RetryMax < c.Feed.RetryBase {
		return fmt.Errorf("FEED_RETRY_BASE must be positive and not above FEED_RETRY_MAX")
	}
	if _, err := time.LoadLocation(c.Display.Timezone); err != nil {
		return fmt.Errorf("DISPLAY_TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the display time zone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BridgeConfig holds configuration for the feedbridge command.
type BridgeConfig struct {
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	Database  DatabaseConfig
	Redis     RedisConfig
	Feed      FeedConfig
}

// LoadBridge reads the feedbridge configuration from environment variables.
func LoadBridge() (*BridgeConfig, error) {
	var cfg BridgeConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.Feed.RetryBase <= 0 || cfg.Feed.RetryMax < cfg.Feed.RetryBase {
		return nil, fmt.Errorf("FEED_RETRY_BASE must be positive and not above FEED_RETRY_MAX")
	}
	return &cfg, nil
}

// AuthEnabled reports whether operator tokens are required.
func (c *Config) AuthEnabled() bool {
	return c.Server.JWTSecret != ""
}
