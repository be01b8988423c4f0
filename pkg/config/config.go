package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/authbroker/pkg/db"
	"github.com/dmitrymomot/authbroker/pkg/logger"
	"github.com/dmitrymomot/authbroker/pkg/oauth"
	"github.com/dmitrymomot/authbroker/pkg/redis"
	"github.com/dmitrymomot/authbroker/pkg/state"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQL    = "sql"
)

// HTTP holds the listener settings; cmd maps them onto the server.
type HTTP struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

// Config is the full service configuration.
type Config struct {
	Log   logger.Config
	HTTP  HTTP
	Token token.Config
	State state.Config
	Redis redis.Config
	DB    db.Config

	// StorageDriver backs login states, the access blacklist and cached
	// app tokens: memory or redis.
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	// LedgerDriver backs refresh records: memory, redis or sql.
	LedgerDriver string `env:"LEDGER_DRIVER" envDefault:"memory"`

	ProvidersFile string        `env:"PROVIDERS_FILE"`
	SweepSchedule string        `env:"SWEEP_SCHEDULE" envDefault:"@every 1h"`
	BrokerTimeout time.Duration `env:"BROKER_TIMEOUT" envDefault:"15s"`

	GitHub oauth.Credentials `envPrefix:"GITHUB_"`
	Google oauth.Credentials `envPrefix:"GOOGLE_"`

	// Providers is filled by Load from ProvidersFile and the presets.
	Providers []oauth.ProviderConfig `env:"-"`
}

// Load reads the environment, then the providers file. GitHub and Google
// presets are added when their client id is set and the file does not
// already declare the same id.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, errors.Join(ErrParseEnv, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.ProvidersFile != "" {
		providers, err := LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
		cfg.Providers = providers
	}

	for _, preset := range []struct {
		creds oauth.Credentials
		build func(oauth.Credentials) oauth.ProviderConfig
	}{
		{cfg.GitHub, oauth.GitHub},
		{cfg.Google, oauth.Google},
	} {
		if preset.creds.ClientID == "" {
			continue
		}
		p := preset.build(preset.creds)
		if !cfg.hasProvider(p.ID) {
			cfg.Providers = append(cfg.Providers, p)
		}
	}

	if len(cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}
	return &cfg, nil
}

func (c Config) validate() error {
	if !slices.Contains([]string{DriverMemory, DriverRedis}, c.StorageDriver) {
		return errors.Join(ErrInvalidDriver, fmt.Errorf("STORAGE_DRIVER %q", c.StorageDriver))
	}
	if !slices.Contains([]string{DriverMemory, DriverRedis, DriverSQL}, c.LedgerDriver) {
		return errors.Join(ErrInvalidDriver, fmt.Errorf("LEDGER_DRIVER %q", c.LedgerDriver))
	}
	return nil
}

// NeedsRedis reports whether any store is configured on Redis.
func (c Config) NeedsRedis() bool {
	return c.StorageDriver == DriverRedis || c.LedgerDriver == DriverRedis
}

func (c Config) hasProvider(id string) bool {
	return slices.ContainsFunc(c.Providers, func(p oauth.ProviderConfig) bool {
		return p.ID == id
	})
}
