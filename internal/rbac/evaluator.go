package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halcyon-health/halcyon/internal/shared"
)

// EventBreakGlassAccess is recorded for every allow sourced from a grant.
const EventBreakGlassAccess = "break_glass_access"

// Evaluator decides whether a principal may perform an action. Grant expiry is
// checked lazily against the clock at every evaluation; an expired grant is
// indistinguishable from no grant.
type Evaluator struct {
	model    *PermissionModel
	grants   GrantSource
	recorder AccessRecorder
	logger   *slog.Logger
	clock    func() time.Time
}

// NewEvaluator constructs an Evaluator. grants may be nil when break-glass is
// not deployed; recorder is required because break-glass allows must always be
// audited.
func NewEvaluator(model *PermissionModel, grants GrantSource, recorder AccessRecorder, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		model:    model,
		grants:   grants,
		recorder: recorder,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the evaluator clock. Test hook.
func (e *Evaluator) WithClock(clock func() time.Time) *Evaluator {
	e.clock = clock
	return e
}

// Evaluate returns the allow/deny decision for the principal and permission.
// Permissions are purely additive across roles; there is no explicit deny.
// When an active grant covers the permission the decision is Allow with
// Source=break_glass and exactly one break_glass_access record is written.
func (e *Evaluator) Evaluate(ctx context.Context, principal shared.Principal, permission string) (Decision, error) {
	decision := Decision{Permission: permission}

	if e.grants != nil {
		grant, err := e.grants.ActiveGrant(ctx, principal.ID)
		if err != nil {
			return decision, fmt.Errorf("rbac: resolve grant: %w", err)
		}
		if grant != nil && !grant.Expired(e.clock()) && grant.Covers(permission) {
			if err := e.recordBreakGlassUse(ctx, principal.ID, grant.ID, permission); err != nil {
				// Fail closed: an unauditable elevated access is not granted.
				return decision, fmt.Errorf("rbac: record break-glass access: %w", err)
			}
			decision.Allowed = true
			decision.Source = SourceBreakGlass
			decision.GrantID = grant.ID
			return decision, nil
		}
	}

	if e.model.HasPermission(principal.Roles, permission) {
		decision.Allowed = true
		decision.Source = SourceRole
	}
	return decision, nil
}

// CanPerform is the caller-facing check API. The resource context is advisory
// and flows into logs only; callers remain responsible for RecordAccess on
// every PHI-touching operation regardless of outcome.
func (e *Evaluator) CanPerform(ctx context.Context, principal shared.Principal, permission, resourceType, resourceID string) (bool, error) {
	decision, err := e.Evaluate(ctx, principal, permission)
	if err != nil {
		return false, err
	}
	if !decision.Allowed && e.logger != nil {
		e.logger.Info("permission denied",
			slog.String("actor", principal.ID),
			slog.String("permission", permission),
			slog.String("resource_type", resourceType),
			slog.String("resource_id", resourceID),
		)
	}
	return decision.Allowed, nil
}

// RecordAccess forwards a caller access event to the configured recorder.
func (e *Evaluator) RecordAccess(ctx context.Context, event AccessEvent) error {
	if e.recorder == nil {
		return fmt.Errorf("rbac: access recorder not configured")
	}
	return e.recorder.RecordAccess(ctx, event)
}

func (e *Evaluator) recordBreakGlassUse(ctx context.Context, actorID, grantID, permission string) error {
	if e.recorder == nil {
		return fmt.Errorf("rbac: access recorder not configured")
	}
	return e.recorder.RecordAccess(ctx, AccessEvent{
		ActorID:      actorID,
		EventType:    EventBreakGlassAccess,
		Action:       permission,
		ResourceType: "elevated_grant",
		ResourceID:   grantID,
		Details:      map[string]any{"permission": permission},
	})
}
