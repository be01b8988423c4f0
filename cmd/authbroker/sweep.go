package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/authbroker/pkg/logger"
)

// sweepTimeout bounds one ledger sweep.
const sweepTimeout = time.Minute

type sweepSource interface {
	Sweep(ctx context.Context) (int, error)
}

// sweeper deletes expired refresh records on a cron schedule.
type sweeper struct {
	cron *cron.Cron
}

func startSweeper(schedule string, src sweepSource, log *slog.Logger) (*sweeper, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		started := time.Now()
		n, err := src.Sweep(ctx)
		if err != nil {
			log.Error("ledger sweep failed", logger.Error(err))
			return
		}
		log.Info("ledger swept",
			slog.Int("deleted", n),
			slog.Duration(logger.KeyDuration, time.Since(started)),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_SCHEDULE %q: %w", schedule, err)
	}
	c.Start()
	return &sweeper{cron: c}, nil
}

// shutdown stops scheduling and waits for a running sweep to finish.
func (s *sweeper) shutdown(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
