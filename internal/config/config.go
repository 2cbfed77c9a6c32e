// Package config loads and validates application configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Document store settings.
	MongoURL      string
	MongoDatabase string

	// QueryTimeout bounds a single aggregation round-trip. The core
	// defines no deadlines of its own; this is the caller-imposed one.
	QueryTimeout time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (Config, error) {
	cfg := Config{
		MongoURL:      envStr("MONGODB_URL", "mongodb://localhost:27017"),
		MongoDatabase: envStr("MIHARU_MONGO_DATABASE", "miharu"),
		QueryTimeout:  envDuration("MIHARU_QUERY_TIMEOUT", 60*time.Second),
		OTELEndpoint:  envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:  envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:   envStr("OTEL_SERVICE_NAME", "miharu"),
		LogLevel:      envStr("MIHARU_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.MongoURL == "" {
		return fmt.Errorf("config: MONGODB_URL is required")
	}
	if c.MongoDatabase == "" {
		return fmt.Errorf("config: MIHARU_MONGO_DATABASE is required")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("config: MIHARU_QUERY_TIMEOUT must be positive")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
