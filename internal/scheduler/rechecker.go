package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type onceRunner interface {
	RunOnce(ctx context.Context, urls []string) (*RunReport, error)
}

// Rechecker re-runs the configured playlists on a fixed interval.
type Rechecker struct {
	Logger   *zap.Logger
	Runner   onceRunner
	URLs     []string
	Interval time.Duration
}

func NewRechecker(logger *zap.Logger, runner onceRunner, urls []string, interval time.Duration) *Rechecker {
	if interval < 0 {
		interval = 0
	}
	return &Rechecker{
		Logger:   logger,
		Runner:   runner,
		URLs:     urls,
		Interval: interval,
	}
}

// Run starts the loop. It does an immediate pass, then runs each tick.
// Stops when ctx is cancelled.
func (r *Rechecker) Run(ctx context.Context) {
	if r.Interval == 0 || len(r.URLs) == 0 {
		// disabled
		r.Logger.Info("rechecker_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	// immediate pass
	r.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("rechecker_stopped")
			return
		case <-t.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Rechecker) runOnce(ctx context.Context) {
	rep, err := r.Runner.RunOnce(ctx, r.URLs)
	switch {
	case errors.Is(err, ErrRunInProgress):
		r.Logger.Info("rechecker_skipped", zap.String("reason", err.Error()))
	case err != nil:
		r.Logger.Warn("rechecker_run_error", zap.Error(err))
	default:
		r.Logger.Debug("rechecker_checked",
			zap.String("run_id", string(rep.Run.ID)),
			zap.Int("channels", rep.Run.Channels),
			zap.Int("passed", rep.Run.Passed),
		)
	}
}
