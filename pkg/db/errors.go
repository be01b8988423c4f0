package db

import "errors"

var (
	ErrUnsupportedDriver        = errors.New("db: unsupported driver")
	ErrEmptyConnectionURL       = errors.New("db: empty connection URL")
	ErrFailedToOpenDBConnection = errors.New("db: failed to open database connection")
	ErrHealthcheckFailed        = errors.New("db: healthcheck failed")
	ErrBeginTx                  = errors.New("db: failed to begin transaction")
	ErrSetDialect               = errors.New("db migrator: failed to set up migrations")
	ErrApplyMigrations          = errors.New("db migrator: failed to apply migrations")
)
