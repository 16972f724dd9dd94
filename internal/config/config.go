// Package config reads notedb settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// DatabasePath overrides the default notes database location. It may
	// point at the container directory or the database file itself.
	DatabasePath string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogPretty forces the human-readable log handler even when stdout
	// is not a terminal.
	LogPretty bool
}

func Load() Config {
	_ = godotenv.Load()
	return Config{
		DatabasePath: os.Getenv("NOTEDB_PATH"),
		LogLevel:     envOr("NOTEDB_LOG_LEVEL", "warn"),
		LogPretty:    parseBoolOr("NOTEDB_LOG_PRETTY", false),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
