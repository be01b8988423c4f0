package broker

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds the provider round trips of one callback.
const DefaultTimeout = 15 * time.Second

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger. Pair it with ProviderExtractor to tag
// records with the provider.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(b *Broker) {
		b.metrics = m
	}
}

// WithTracerProvider sets the provider spans are created from. The global
// otel provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Broker) {
		if tp != nil {
			b.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithTimeout bounds the code exchange and user info calls together.
func WithTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.timeout = d
		}
	}
}
