package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON logger on stdout at info level.
func New(extractors ...ContextExtractor) *slog.Logger {
	return NewWriter(os.Stdout, Config{}, extractors...)
}

// NewWriter creates a logger writing to w. Sentry settings in cfg are
// ignored; use NewWithSentry for that.
func NewWriter(w io.Writer, cfg Config, extractors ...ContextExtractor) *slog.Logger {
	return slog.New(newContextHandler(baseHandler(w, cfg), extractors...))
}

// NewNope returns a logger that drops everything.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func baseHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
