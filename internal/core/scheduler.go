package core

// scheduler.go drives the pipeline on a fixed interval for the serve mode.
//
// The scheduler is long-running and context-aware for graceful shutdown. A
// failed or skipped run is logged and the next tick tries again; since a
// failed run never advances the watermark, the retry re-attempts the same
// refresh.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ScheduleConfig holds configuration for the refresh scheduler.
type ScheduleConfig struct {
	Interval time.Duration // How often to run (default: 24h)
	Timeout  time.Duration // Upper bound for a single run (0: none)
}

// StartRefreshScheduler runs the pipeline immediately, then every Interval,
// until ctx is cancelled.
func (p *Pipeline) StartRefreshScheduler(ctx context.Context, cfg ScheduleConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	slog.Info("refresh scheduler started", "interval", cfg.Interval.String())

	p.runScheduled(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			p.runScheduled(ctx, cfg)
		}
	}
}

// runScheduled performs one scheduled run.
func (p *Pipeline) runScheduled(ctx context.Context, cfg ScheduleConfig) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	res, err := p.Run(ctx, RunOptions{})
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.Info("scheduled run skipped, another run is active")
	case err != nil:
		slog.Warn("scheduled run failed", "run_id", res.RunID, "error", FormatUserError(err))
	default:
		slog.Debug("scheduled run done", "run_id", res.RunID, "outcome", res.Outcome)
	}
}
