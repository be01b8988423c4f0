package main

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/authbroker/pkg/config"
	"github.com/dmitrymomot/authbroker/pkg/db"
	"github.com/dmitrymomot/authbroker/pkg/logger"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the refresh token ledger schema",
		Long: `Applies pending migrations to DATABASE_URL. serve also migrates on start
when LEDGER_DRIVER=sql; use this to migrate ahead of a rollout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := env.ParseAs[struct {
				Log logger.Config
				DB  db.Config
			}]()
			if err != nil {
				return errors.Join(config.ErrParseEnv, err)
			}
			log := logger.NewWriter(cmd.OutOrStdout(), cfg.Log)

			ctx := cmd.Context()
			conn, dialect, err := db.Open(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := token.NewSQLLedger(conn, dialect).Migrate(ctx, log); err != nil {
				return err
			}
			log.InfoContext(ctx, "ledger schema up to date", "driver", cfg.DB.Driver)
			return nil
		},
	}
}
