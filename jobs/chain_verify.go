package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/halcyon-health/halcyon/internal/audit"
	jobmetrics "github.com/halcyon-health/halcyon/internal/jobs"
	"github.com/halcyon-health/halcyon/internal/observability"
)

// ChainVerifyJob re-walks an audit chain and alerts when a link is broken.
// Verification is read-only; a broken chain is reported, never repaired.
type ChainVerifyJob struct {
	Audit   *audit.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	AppMet  *observability.Metrics
}

// NewChainVerifyJob initialises the chain verification handler.
func NewChainVerifyJob(auditSvc *audit.Service, logger *slog.Logger, metrics *jobmetrics.Metrics, appMet *observability.Metrics) *ChainVerifyJob {
	return &ChainVerifyJob{Audit: auditSvc, Logger: logger, Metrics: metrics, AppMet: appMet}
}

// Handle executes the verification.
func (j *ChainVerifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("chain verify: handler not configured")
	}
	var payload ChainVerifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Chain == "" {
		payload.Chain = audit.ChainGlobal
	}

	tracker := j.Metrics.Track(TaskChainVerify)
	start := time.Now()

	result, err := j.Audit.Verify(ctx, payload.Chain)
	if err != nil {
		j.logger().Error("chain verify failed", slog.String("chain", payload.Chain), slog.Any("error", err))
		return tracker.End(err)
	}
	if !result.Valid {
		j.AppMet.ChainFailure()
		j.logger().Error("audit chain broken",
			slog.String("chain", payload.Chain),
			slog.Int("break_at", result.BreakAt),
			slog.Int("checked", result.Checked),
		)
		return tracker.End(errors.New("chain verify: broken chain"))
	}
	j.logger().Info("audit chain verified",
		slog.String("chain", payload.Chain),
		slog.Int("checked", result.Checked),
		slog.Duration("duration", time.Since(start)),
	)
	return tracker.End(nil)
}

func (j *ChainVerifyJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
