// Package logger builds the broker's slog loggers.
//
// Loggers emit JSON (or text) and are decorated with ContextExtractors,
// which add request-scoped attributes such as the request id or provider
// to every record logged with a context:
//
//	log := logger.New(httpapi.RequestIDExtractor, broker.ProviderExtractor)
//	log.InfoContext(ctx, "login started", slog.String(logger.KeyProvider, "github"))
//
// NewWithSentry additionally forwards warnings and errors to Sentry when a
// DSN is configured. NewNope discards output and is the default for
// components that accept an optional logger.
//
// Attribute keys are exported as constants (KeyProvider, KeySubject, ...)
// so every package logs the same names.
package logger
