// Package db opens database/sql handles for the refresh-token ledger and
// applies its goose migrations.
//
// Two dialects are supported: PostgreSQL through the pgx stdlib driver and
// SQLite through the pure-Go modernc.org/sqlite driver. Queries are written
// with "?" placeholders and passed through [Dialect.Rebind].
//
//	sqlDB, dialect, err := db.Open(ctx, db.Config{Driver: "postgres", URL: os.Getenv("DATABASE_URL")})
//	if err != nil {
//	    return err
//	}
//	defer sqlDB.Close()
//
//	if err := db.Migrate(ctx, sqlDB, dialect, migrations, log); err != nil {
//	    return err
//	}
//
// Settings are read from DATABASE_DRIVER, DATABASE_URL,
// DATABASE_MAX_OPEN_CONNS, DATABASE_MAX_IDLE_CONNS,
// DATABASE_MAX_CONN_LIFETIME, DATABASE_RETRY_ATTEMPTS and
// DATABASE_RETRY_INTERVAL.
package db
