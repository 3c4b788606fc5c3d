// Package breakglass issues and expires emergency elevated-access grants.
// Every request, grant, revocation, and use is written to the audit chain;
// expiry is enforced lazily at evaluation time with no grace window.
package breakglass

import (
	"context"
	"time"
)

// Request statuses.
const (
	StatusPending = "pending"
	StatusGranted = "granted"
)

// Grant states, computed from timestamps rather than stored.
const (
	StateActive  = "active"
	StateExpired = "expired"
	StateRevoked = "revoked"
)

// Request is a pending petition for emergency access. It always leaves an
// audit entry, even when never granted.
type Request struct {
	ID            string    `json:"id"`
	PrincipalID   string    `json:"principal_id"`
	Justification string    `json:"justification"`
	Status        string    `json:"status"`
	RequestedAt   time.Time `json:"requested_at"`
	AuditEntryID  string    `json:"audit_entry_id"`
}

// Grant is a time-boxed elevated permission set. It stays in storage after
// expiry or revocation for the audit trail; it merely becomes inert.
type Grant struct {
	ID            string     `json:"id"`
	RequestID     string     `json:"request_id"`
	PrincipalID   string     `json:"principal_id"`
	ApproverID    string     `json:"approver_id"`
	SelfApproved  bool       `json:"self_approved"`
	Permissions   []string   `json:"permissions"`
	Justification string     `json:"justification"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	AuditEntryID  string     `json:"audit_entry_id"`
	// Swept marks that the expiry sweep already recorded the lapse. It has
	// no effect on evaluation.
	Swept bool `json:"-"`
}

// State reports the grant's lifecycle state at the given instant.
func (g Grant) State(now time.Time) string {
	if g.RevokedAt != nil {
		return StateRevoked
	}
	if !now.Before(g.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}

// Repository is the persistence boundary for break-glass state.
type Repository interface {
	SaveRequest(ctx context.Context, request Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	MarkRequestGranted(ctx context.Context, id string) error
	SaveGrant(ctx context.Context, grant Grant) error
	GetGrant(ctx context.Context, id string) (*Grant, error)
	// LatestGrant returns the most recently issued unrevoked grant for the
	// principal, expired or not; the service applies the expiry check.
	LatestGrant(ctx context.Context, principalID string) (*Grant, error)
	// Revoke sets the revocation time iff not already revoked.
	Revoke(ctx context.Context, grantID string, at time.Time) (bool, error)
	// ListLapsed returns expired, unrevoked, unswept grants.
	ListLapsed(ctx context.Context, now time.Time) ([]Grant, error)
	MarkSwept(ctx context.Context, grantID string) error
}
