package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/authbroker/internal/httpapi"
	"github.com/dmitrymomot/authbroker/pkg/broker"
	"github.com/dmitrymomot/authbroker/pkg/config"
	"github.com/dmitrymomot/authbroker/pkg/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the broker over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log := logger.NewWithSentry(cfg.Log, httpapi.RequestIDExtractor, broker.ProviderExtractor)
			defer logger.Flush(2 * time.Second)

			if err := serve(ctx, cfg, log); err != nil {
				log.Error("server stopped", logger.Error(err))
				return err
			}
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := build(ctx, cfg, log, reg)
	if err != nil {
		return err
	}

	sweeper, err := startSweeper(cfg.SweepSchedule, app.tokens, log)
	if err != nil {
		_ = app.stores.close(ctx)
		return err
	}

	return httpapi.Serve(ctx, serverConfig(cfg.HTTP), app.handler, log,
		sweeper.shutdown,
		app.stores.close,
	)
}

func serverConfig(c config.HTTP) httpapi.Config {
	return httpapi.Config{
		Addr:              c.Addr,
		ReadTimeout:       c.ReadTimeout,
		ReadHeaderTimeout: c.ReadHeaderTimeout,
		WriteTimeout:      c.WriteTimeout,
		IdleTimeout:       c.IdleTimeout,
		ShutdownTimeout:   c.ShutdownTimeout,
	}
}
