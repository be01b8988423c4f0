package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/authbroker/pkg/logger"
)

// Option configures the router.
type Option func(*routerConfig)

type routerConfig struct {
	log     *slog.Logger
	checks  Checks
	metrics http.Handler
}

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *routerConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCheck adds a readiness probe served on /readyz.
func WithCheck(name string, fn CheckFunc) Option {
	return func(c *routerConfig) {
		c.checks[name] = fn
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *routerConfig) {
		c.metrics = h
	}
}

// NewRouter builds the HTTP handler:
//
//	GET       /auth/{provider}/login     302 to the provider
//	GET|POST  /auth/{provider}/callback  token pair as JSON
//	POST      /auth/refresh              rotated pair
//	POST      /auth/logout               204
//	GET       /auth/me                   access token claims
//	GET       /healthz, /readyz, /metrics
func NewRouter(b Broker, opts ...Option) http.Handler {
	cfg := &routerConfig{log: logger.NewNope(), checks: Checks{}}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handlers{broker: b, log: cfg.log}

	r := chi.NewRouter()
	r.Use(requestID, recoverer(cfg.log), requestLogger(cfg.log))

	r.Get("/healthz", liveness)
	r.Get("/readyz", readiness(cfg.checks, cfg.log))
	if cfg.metrics != nil {
		r.Handle("/metrics", cfg.metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/login", h.login)
		r.Get("/{provider}/callback", h.callback)
		r.Post("/{provider}/callback", h.callback)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.With(h.requireAccess).Get("/me", h.me)
	})

	return r
}
