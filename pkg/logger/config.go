package logger

import (
	"log/slog"
	"strings"
)

// Config selects the log level, output format and optional Sentry sink.
type Config struct {
	Level  string       `env:"LOG_LEVEL" envDefault:"info"`
	Format string       `env:"LOG_FORMAT" envDefault:"json"`
	Sentry SentryConfig `envPrefix:"SENTRY_"`
}

// SentryConfig holds Sentry settings. An empty DSN disables Sentry.
type SentryConfig struct {
	DSN         string `env:"DSN"`
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
	// MinLevel is the lowest level stored in Sentry as a log entry;
	// errors always become issues.
	MinLevel string `env:"MIN_LEVEL" envDefault:"warn"`
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
