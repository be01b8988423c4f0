package oauth

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/authbroker/pkg/cache"
)

// Option configures a Registry and the adapters it builds.
type Option func(*options)

type options struct {
	httpClient *http.Client
	appTokens  cache.Cache[string]
	adapters   map[Dialect]Adapter
	now        func() time.Time
}

// WithHTTPClient sets the HTTP client used for all provider calls.
// Useful for httptest servers or custom transports.
// Default: a client with a 30s timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithAdapter overrides the adapter used for a dialect.
func WithAdapter(d Dialect, a Adapter) Option {
	return func(o *options) {
		o.adapters[d] = a
	}
}

// WithAppTokenCache sets where app-credential providers cache their app
// access tokens. Share a Redis cache across instances to avoid each one
// fetching its own. Default: in-memory.
func WithAppTokenCache(c cache.Cache[string]) Option {
	return func(o *options) {
		o.appTokens = c
	}
}

// WithClock overrides the time source used for gateway timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
