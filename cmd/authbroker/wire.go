package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/authbroker/internal/httpapi"
	"github.com/dmitrymomot/authbroker/pkg/broker"
	"github.com/dmitrymomot/authbroker/pkg/cache"
	"github.com/dmitrymomot/authbroker/pkg/config"
	"github.com/dmitrymomot/authbroker/pkg/db"
	"github.com/dmitrymomot/authbroker/pkg/oauth"
	"github.com/dmitrymomot/authbroker/pkg/redis"
	"github.com/dmitrymomot/authbroker/pkg/state"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

const redisPrefix = "authbroker"

// stores holds the backends selected by STORAGE_DRIVER and LEDGER_DRIVER.
type stores struct {
	states    cache.Atomic[state.Record]
	blacklist cache.Cache[bool]
	appTokens cache.Cache[string]
	ledger    token.Ledger

	checks  httpapi.Checks
	closers []func() error
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *stores, err error) {
	s := &stores{checks: httpapi.Checks{}}
	defer func() {
		if err != nil {
			_ = s.close(ctx)
		}
	}()

	var client goredis.UniversalClient
	if cfg.NeedsRedis() {
		client, err = redis.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		s.checks["redis"] = redis.Healthcheck(client)
	}

	switch cfg.StorageDriver {
	case config.DriverRedis:
		s.states = cache.NewRedis[state.Record](client, nil, cache.WithPrefix(redisPrefix))
		s.blacklist = cache.NewRedis[bool](client, nil, cache.WithPrefix(redisPrefix))
		s.appTokens = cache.NewRedis[string](client, nil, cache.WithPrefix(redisPrefix+":app_token"))
	default:
		s.states = cache.NewMemory[state.Record](cache.WithCleanupInterval(time.Minute))
		s.blacklist = cache.NewMemory[bool](cache.WithCleanupInterval(time.Minute))
		s.appTokens = cache.NewMemory[string](cache.WithCleanupInterval(10 * time.Minute))
		s.closers = append(s.closers, s.states.Close, s.blacklist.Close, s.appTokens.Close)
	}

	switch cfg.LedgerDriver {
	case config.DriverRedis:
		s.ledger = token.NewRedisLedger(client)
	case config.DriverSQL:
		conn, dialect, err := db.Open(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, conn.Close)
		s.checks["database"] = db.Healthcheck(conn)

		ledger := token.NewSQLLedger(conn, dialect)
		if err := ledger.Migrate(ctx, log); err != nil {
			return nil, err
		}
		s.ledger = ledger
	default:
		s.ledger = token.NewMemoryLedger()
	}

	return s, nil
}

// close releases the backends in reverse order of opening.
func (s *stores) close(context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// application is the fully wired service.
type application struct {
	handler http.Handler
	tokens  *token.Manager
	stores  *stores
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger, reg *prometheus.Registry) (_ *application, err error) {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = st.close(ctx)
		}
	}()

	registry, err := oauth.NewRegistry(cfg.Providers, oauth.WithAppTokenCache(st.appTokens))
	if err != nil {
		return nil, err
	}

	tokenOpts, err := cfg.Token.Options()
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewManager(st.ledger, token.NewCacheBlacklist(st.blacklist),
		append(tokenOpts, token.WithLogger(log))...)
	if err != nil {
		return nil, err
	}

	metrics, err := broker.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	b := broker.New(registry, state.NewStoreFromConfig(st.states, cfg.State), tokens, broker.NewMemoryResolver(),
		broker.WithLogger(log),
		broker.WithMetrics(metrics),
		broker.WithTimeout(cfg.BrokerTimeout),
	)

	opts := []httpapi.Option{
		httpapi.WithLogger(log),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
	}
	for name, check := range st.checks {
		opts = append(opts, httpapi.WithCheck(name, check))
	}

	log.Info("broker configured",
		slog.Any("providers", registry.IDs()),
		slog.String("storage", cfg.StorageDriver),
		slog.String("ledger", cfg.LedgerDriver),
	)

	return &application{
		handler: httpapi.NewRouter(b, opts...),
		tokens:  tokens,
		stores:  st,
	}, nil
}
