package db

import "time"

// Config holds SQL connection parameters.
type Config struct {
	// Driver is "postgres" or "sqlite".
	Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	// URL is a postgres:// connection URL or a sqlite file path/DSN.
	URL string `env:"DATABASE_URL" envDefault:"authbroker.db"`

	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`

	// Startup retries with linear backoff, for databases that come up
	// after the broker.
	RetryAttempts int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"2s"`
}
