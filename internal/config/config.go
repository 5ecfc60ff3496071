// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database (optional, uses in-memory stores if not set)
	DatabaseURL string

	// Redis (optional) shares rate-limit windows across replicas
	RedisURL string

	// ML collaborator
	PredictionURL     string
	PredictionTimeout time.Duration

	// Roster seeding for the in-memory store
	RosterSize int
	RosterSeed uint64

	// Text substituted for {dueDate} in offer templates
	DueDateLabel string

	CORSOrigins  []string
	OTLPEndpoint string // empty disables tracing
}

const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultPredictionURL     = "http://localhost:5000/predict"
	DefaultPredictionTimeout = 10 * time.Second
	DefaultRosterSize        = 25
	DefaultRosterSeed        = 42
	DefaultDueDateLabel      = "next week"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:         getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		PredictionURL:     getEnv("PREDICTION_URL", DefaultPredictionURL),
		PredictionTimeout: getEnvDuration("PREDICTION_TIMEOUT", DefaultPredictionTimeout),
		RosterSize:        int(getEnvInt64("ROSTER_SIZE", DefaultRosterSize)),
		RosterSeed:        uint64(getEnvInt64("ROSTER_SEED", DefaultRosterSeed)),
		DueDateLabel:      getEnv("DUE_DATE_LABEL", DefaultDueDateLabel),
		CORSOrigins:       splitList(os.Getenv("CORS_ORIGINS")),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", c.Port)
	}

	switch c.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENV must be development, staging or production, got %q", c.Env)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	u, err := url.Parse(c.PredictionURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PREDICTION_URL must be an absolute http(s) URL, got %q", c.PredictionURL)
	}
	if c.PredictionTimeout <= 0 {
		return fmt.Errorf("PREDICTION_TIMEOUT must be positive")
	}

	if c.RedisURL != "" {
		if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("REDIS_URL must be a redis:// or rediss:// URL")
		}
	}

	if c.RosterSize < 0 {
		return fmt.Errorf("ROSTER_SIZE must not be negative")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesPostgres reports whether a database is configured.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// UsesRedis reports whether rate limiting is shared through Redis.
func (c *Config) UsesRedis() bool {
	return c.RedisURL != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1500ms") or whole seconds ("10").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
