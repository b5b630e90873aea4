// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// Env names the deployment ("development", "production"). Reported to Sentry.
	Env string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// AutoMigrate runs the embedded goose migrations on startup. Defaults to true.
	AutoMigrate bool

	// JWTSecret is the HMAC key that signs client bearer tokens. Required.
	JWTSecret []byte

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// RedisURL locates the advisory cache. Empty disables caching.
	RedisURL string

	// LLM chat-completions endpoint. An empty key leaves weather and advice unavailable.
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// UpstreamTimeout bounds each weather or advice lookup in a trip detail.
	UpstreamTimeout time.Duration

	// CleanupInterval is how often a signed-in user's ended trips are migrated.
	CleanupInterval time.Duration

	// CacheSweepInterval is how often stale advisory cache entries are deleted.
	CacheSweepInterval time.Duration

	// WebhookAuth is the Authorization header value the billing provider sends.
	WebhookAuth string

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// SentryDSN enables error reporting when set.
	SentryDSN string
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
// Returns an error listing any required variables that are not set and any
// values that fail to parse.
func Load() (Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("APP_ENV", "development"),
		DatabaseURL:        p.required("DATABASE_URL"),
		AutoMigrate:        p.flag("AUTO_MIGRATE", true),
		JWTSecret:          []byte(p.required("JWT_SECRET")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "http://localhost:8081")),
		RedisURL:           os.Getenv("REDIS_URL"),
		LLMBaseURL:         getEnv("LLM_API_URL", "https://api.openai.com/v1"),
		LLMAPIKey:          os.Getenv("LLM_API_KEY"),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		UpstreamTimeout:    p.duration("UPSTREAM_TIMEOUT", 20*time.Second),
		CleanupInterval:    p.duration("CLEANUP_INTERVAL", time.Hour),
		CacheSweepInterval: p.duration("CACHE_SWEEP_INTERVAL", 24*time.Hour),
		WebhookAuth:        os.Getenv("REVENUECAT_WEBHOOK_AUTH"),
		MaxBodyBytes:       p.size("MAX_BODY_BYTES", 1<<20),
		SentryDSN:          os.Getenv("SENTRY_DSN"),
	}

	if err := p.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parser accumulates missing and malformed variables so Load can report
// them all at once.
type parser struct {
	missing []string
	invalid []string
}

func (p *parser) required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		p.missing = append(p.missing, key)
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return d
}

func (p *parser) size(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return n
}

func (p *parser) flag(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return b
}

func (p *parser) err() error {
	var errs []error
	if len(p.missing) > 0 {
		errs = append(errs, fmt.Errorf("required environment variables not set: %s", strings.Join(p.missing, ", ")))
	}
	if len(p.invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid environment variables: %s", strings.Join(p.invalid, ", ")))
	}
	return errors.Join(errs...)
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
