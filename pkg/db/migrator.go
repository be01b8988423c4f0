package db

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// Migrate applies every pending migration in migrations, a filesystem
// holding goose-annotated .sql files at its root.
//
// It uses a goose Provider rather than the package-level goose API, so
// concurrent migrations of different databases do not share state.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, migrations fs.FS, log *slog.Logger) error {
	p, err := goose.NewProvider(dialect.goose(), db, migrations)
	if err != nil {
		return errors.Join(ErrSetDialect, err)
	}

	results, err := p.Up(ctx)
	if err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}

	if log != nil {
		for _, r := range results {
			if r.Source == nil {
				continue
			}
			log.InfoContext(ctx, "applied migration",
				slog.Int64("version", r.Source.Version),
				slog.Duration("duration", r.Duration),
			)
		}
	}
	return nil
}
