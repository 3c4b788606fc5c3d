package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/halcyon-health/halcyon/internal/breakglass"
	jobmetrics "github.com/halcyon-health/halcyon/internal/jobs"
)

// GrantSweepJob records expiry audit events for break-glass grants whose TTL
// has lapsed. Expiry itself is lazy; the sweep only makes it visible in the
// audit trail.
type GrantSweepJob struct {
	BreakGlass *breakglass.Service
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewGrantSweepJob initialises the sweep handler.
func NewGrantSweepJob(svc *breakglass.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *GrantSweepJob {
	return &GrantSweepJob{BreakGlass: svc, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep.
func (j *GrantSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.BreakGlass == nil {
		return errors.New("grant sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskGrantSweep)

	swept, err := j.BreakGlass.SweepExpired(ctx)
	if err != nil {
		j.logger().Error("grant sweep failed", slog.Any("error", err))
		return tracker.End(err)
	}
	if swept > 0 {
		j.logger().Info("expired grants swept", slog.Int("count", swept))
	}
	return tracker.End(nil)
}

func (j *GrantSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
