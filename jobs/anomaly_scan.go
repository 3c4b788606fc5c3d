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
)

// AnomalyScanJob replays recent audit entries through the offline detectors.
// It complements the live Redis counters with a full-window pass that also
// covers entries appended while the service was down.
type AnomalyScanJob struct {
	Audit    *audit.Service
	Detector audit.DetectorConfig
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewAnomalyScanJob initialises the anomaly scan handler.
func NewAnomalyScanJob(auditSvc *audit.Service, cfg audit.DetectorConfig, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnomalyScanJob {
	return &AnomalyScanJob{
		Audit:    auditSvc,
		Detector: cfg,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *AnomalyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("anomaly scan: handler not configured")
	}
	var payload AnomalyScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 24
	}

	tracker := j.Metrics.Track(TaskAnomalyScan)
	now := j.now()
	logger := j.logger().With(slog.Int("window_hours", payload.WindowHours))
	logger.Info("starting anomaly scan")

	entries, err := j.Audit.List(ctx, audit.Filter{
		From: now.Add(-time.Duration(payload.WindowHours) * time.Hour),
	})
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	signals := audit.ScanEntries(entries, j.Detector, now)
	for _, s := range signals {
		logger.Warn("suspicious activity detected",
			slog.String("kind", s.Kind),
			slog.String("subject", s.Subject),
			slog.Int64("count", s.Count),
			slog.String("severity", s.Severity),
		)
		j.Metrics.AddSignals(s.Kind, s.Severity, 1)
	}

	logger.Info("completed anomaly scan",
		slog.Int("entries", len(entries)),
		slog.Int("signals", len(signals)),
	)
	return tracker.End(nil)
}

func (j *AnomalyScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *AnomalyScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
