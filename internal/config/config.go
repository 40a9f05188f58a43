package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Database drivers accepted in DATABASE_DRIVER.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

// Environments accepted in ENV.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"sqlite3"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:"./data/chat.db"`
	RedisURL       string `envconfig:"REDIS_URL"`

	// Authentication: a plain key, or its bcrypt hash (preferred in production)
	APIKey     string `envconfig:"API_KEY"`
	APIKeyHash string `envconfig:"API_KEY_HASH"`

	// Rate limiting
	RateLimitWhitelist []string      `envconfig:"RATE_LIMIT_WHITELIST"` // IPs or CIDRs exempt from rate limiting
	TrustedProxies     []string      `envconfig:"TRUSTED_PROXIES"`      // peers whose X-Forwarded-For is honoured
	AutoBlockEnabled   bool          `envconfig:"AUTO_BLOCK_ENABLED" default:"false"`
	CreateRateLimit    int           `envconfig:"RATE_LIMIT_POST_MESSAGES" default:"3"`
	RateLimitWindow    time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"8192"`
}

// Load reads configuration from environment variables.
// It loads a .env file first if one is present.
func Load() (*Config, error) {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg.RateLimitWhitelist = trimEntries(cfg.RateLimitWhitelist)
	cfg.TrustedProxies = trimEntries(cfg.TrustedProxies)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func trimEntries(entries []string) []string {
	out := entries[:0]
	for _, entry := range entries {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

// Validate checks field values and cross-field requirements.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.Env, validation.Required, validation.In(EnvDevelopment, EnvTest, EnvProduction)),
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled")),
		validation.Field(&c.DatabaseDriver, validation.Required, validation.In(DriverSQLite, DriverPostgres, DriverMySQL, DriverMemory)),
		validation.Field(&c.DatabaseURL, validation.When(c.DatabaseDriver != DriverMemory, validation.Required)),
		validation.Field(&c.RedisURL, validation.When(c.Env == EnvProduction, validation.Required.Error("is required in production"))),
		validation.Field(&c.APIKey, validation.When(c.APIKeyHash == "", validation.Required.Error("API_KEY or API_KEY_HASH is required"))),
		validation.Field(&c.CreateRateLimit, validation.Min(1)),
		validation.Field(&c.RateLimitWindow, validation.Min(time.Second)),
		validation.Field(&c.MaxBodyBytes, validation.Min(int64(512))),
	)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}
