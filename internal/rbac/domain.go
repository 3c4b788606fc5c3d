package rbac

import (
	"context"
	"time"
)

// Wildcard grants every permission when present in a role's permission set.
const Wildcard = "*"

// Role is an immutable named permission set loaded from the policy document.
type Role struct {
	Name        string
	Description string
	Permissions []string
}

// DecisionSource names which path produced an Allow.
type DecisionSource string

const (
	// SourceRole marks a decision produced by the principal's normal roles.
	SourceRole DecisionSource = "role"
	// SourceBreakGlass marks a decision produced by an elevated-access grant.
	SourceBreakGlass DecisionSource = "break_glass"
)

// Decision is the result of evaluating a permission check.
type Decision struct {
	Allowed    bool
	Source     DecisionSource
	Permission string
	GrantID    string
}

// ElevatedGrant is the evaluator's view of an active break-glass grant.
// Expiry is enforced here at evaluation time; there is no grace window.
type ElevatedGrant struct {
	ID          string
	PrincipalID string
	Permissions []string
	ExpiresAt   time.Time
}

// Expired reports whether the grant is past its TTL at the given instant.
func (g ElevatedGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// Covers reports whether the grant's permission set includes the token.
func (g ElevatedGrant) Covers(permission string) bool {
	for _, p := range g.Permissions {
		if p == Wildcard || p == permission {
			return true
		}
	}
	return false
}

// GrantSource resolves the active elevated grant for a principal, if any.
// Implementations must return (nil, nil) when no usable grant exists.
type GrantSource interface {
	ActiveGrant(ctx context.Context, principalID string) (*ElevatedGrant, error)
}

// AccessEvent is the caller-facing audit payload for PHI-touching operations
// and for break-glass usage records.
type AccessEvent struct {
	ActorID      string
	EventType    string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
}

// AccessRecorder persists access events. The evaluator uses it to guarantee a
// break_glass_access record for every allow sourced from a grant; callers use
// it for every PHI-touching operation, success or failure.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, event AccessEvent) error
}
