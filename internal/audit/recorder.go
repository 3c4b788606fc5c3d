package audit

import (
	"context"
	"log/slog"

	"github.com/halcyon-health/halcyon/internal/rbac"
)

// Recorder adapts the audit service to the evaluator-facing AccessRecorder
// contract and feeds the live suspicious-activity detector. The detector is
// advisory: a raised signal is logged, never enforced.
type Recorder struct {
	service  *Service
	detector *Detector
	chain    string
	logger   *slog.Logger
}

// NewRecorder constructs a Recorder writing to the given chain. detector may
// be nil when redis is unavailable; recording then proceeds without signals.
func NewRecorder(service *Service, detector *Detector, chain string, logger *slog.Logger) *Recorder {
	if chain == "" {
		chain = ChainGlobal
	}
	return &Recorder{service: service, detector: detector, chain: chain, logger: logger}
}

// RecordAccess appends the event to the audit chain and updates detector
// windows for PHI and auth-failure events.
func (r *Recorder) RecordAccess(ctx context.Context, event rbac.AccessEvent) error {
	_, err := r.service.Append(ctx, Event{
		Chain:        r.chain,
		ActorID:      event.ActorID,
		EventType:    event.EventType,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Details:      event.Details,
	})
	if err != nil {
		return err
	}
	if r.detector == nil {
		return nil
	}

	var signal Signal
	var detectErr error
	switch event.EventType {
	case EventPHIAccess, EventPHICreate, EventPHIUpdate, EventPHIDelete:
		signal, detectErr = r.detector.RecordPHIAccess(ctx, event.ActorID)
	case EventAuthFailure:
		origin, _ := event.Details["origin"].(string)
		if origin == "" {
			origin = event.ActorID
		}
		signal, detectErr = r.detector.RecordAuthFailure(ctx, origin)
	default:
		return nil
	}
	if detectErr != nil {
		// Detector trouble must not block the audit trail.
		if r.logger != nil {
			r.logger.Warn("detector update failed", slog.Any("error", detectErr))
		}
		return nil
	}
	if signal.Severity != SeverityNone && r.logger != nil {
		r.logger.Warn("suspicious activity signal",
			slog.String("kind", signal.Kind),
			slog.String("subject", signal.Subject),
			slog.Int64("count", signal.Count),
			slog.String("severity", signal.Severity),
		)
	}
	return nil
}

var _ rbac.AccessRecorder = (*Recorder)(nil)
