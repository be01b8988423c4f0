package broker

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/authbroker/pkg/logger"
)

type providerKey struct{}

func withProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey{}, provider)
}

// ProviderFromContext returns the provider of the login attempt in ctx.
func ProviderFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(providerKey{}).(string)
	return p, ok && p != ""
}

// ProviderExtractor adds the provider attribute to records logged inside
// broker operations.
func ProviderExtractor(ctx context.Context) (slog.Attr, bool) {
	p, ok := ProviderFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String(logger.KeyProvider, p), true
}

var _ logger.ContextExtractor = ProviderExtractor
