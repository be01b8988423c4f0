package token

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/dmitrymomot/authbroker/pkg/db"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the goose migrations for the refresh_tokens table.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// SQLLedger stores refresh records in the refresh_tokens table.
//
// Rotate runs a conditional UPDATE inside a transaction; whichever caller
// flips revoked first wins, the others see zero affected rows.
type SQLLedger struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewSQLLedger wraps an open database. Call Migrate before first use.
func NewSQLLedger(conn *sql.DB, dialect db.Dialect) *SQLLedger {
	return &SQLLedger{db: conn, dialect: dialect}
}

// Migrate applies the ledger schema.
func (l *SQLLedger) Migrate(ctx context.Context, log *slog.Logger) error {
	return db.Migrate(ctx, l.db, l.dialect, Migrations(), log)
}

func (l *SQLLedger) Create(ctx context.Context, rec Record) error {
	_, err := l.db.ExecContext(ctx, l.dialect.Rebind(insertRecord),
		rec.ID, rec.Subject, rec.Family, rec.Revoked, rec.ExpiresAt.Unix(), rec.CreatedAt.Unix())
	return err
}

func (l *SQLLedger) Get(ctx context.Context, id string) (Record, error) {
	var (
		rec       Record
		expiresAt int64
		createdAt int64
	)
	err := l.db.QueryRowContext(ctx, l.dialect.Rebind(
		`SELECT id, subject, family, revoked, expires_at, created_at FROM refresh_tokens WHERE id = ?`), id,
	).Scan(&rec.ID, &rec.Subject, &rec.Family, &rec.Revoked, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.ExpiresAt = time.Unix(expiresAt, 0)
	rec.CreatedAt = time.Unix(createdAt, 0)
	return rec, nil
}

func (l *SQLLedger) Rotate(ctx context.Context, oldID string, next Record) error {
	return db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, l.dialect.Rebind(
			`UPDATE refresh_tokens SET revoked = ? WHERE id = ? AND subject = ? AND revoked = ? AND expires_at > ?`),
			true, oldID, next.Subject, false, next.CreatedAt.Unix())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if n != 1 {
			var revoked bool
			err := tx.QueryRowContext(ctx, l.dialect.Rebind(
				`SELECT revoked FROM refresh_tokens WHERE id = ? AND subject = ?`), oldID, next.Subject,
			).Scan(&revoked)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return ErrRecordNotFound
			case err != nil:
				return err
			case revoked:
				return ErrRecordRevoked
			}
			return ErrRecordNotFound
		}

		_, err = tx.ExecContext(ctx, l.dialect.Rebind(insertRecord),
			next.ID, next.Subject, next.Family, false, next.ExpiresAt.Unix(), next.CreatedAt.Unix())
		return err
	})
}

func (l *SQLLedger) Revoke(ctx context.Context, id string) (bool, error) {
	n, err := l.exec(ctx, `UPDATE refresh_tokens SET revoked = ? WHERE id = ?`, true, id)
	return n > 0, err
}

func (l *SQLLedger) RevokeFamily(ctx context.Context, family string) (int, error) {
	return l.exec(ctx, `UPDATE refresh_tokens SET revoked = ? WHERE family = ? AND revoked = ?`, true, family, false)
}

func (l *SQLLedger) RevokeSubject(ctx context.Context, subject string) (int, error) {
	return l.exec(ctx, `UPDATE refresh_tokens SET revoked = ? WHERE subject = ? AND revoked = ?`, true, subject, false)
}

func (l *SQLLedger) Sweep(ctx context.Context, now time.Time) (int, error) {
	return l.exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, now.Unix())
}

func (l *SQLLedger) exec(ctx context.Context, query string, args ...any) (int, error) {
	res, err := l.db.ExecContext(ctx, l.dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const insertRecord = `INSERT INTO refresh_tokens (id, subject, family, revoked, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`

var _ Ledger = (*SQLLedger)(nil)
