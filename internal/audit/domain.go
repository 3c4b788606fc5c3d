// Package audit implements the tamper-evident access log: an append-only,
// hash-chained record store with export and advisory suspicious-activity
// detection.
package audit

import (
	"context"
	"time"
)

// ChainGlobal is the default logical chain when the operator does not shard
// per tenant.
const ChainGlobal = "global"

// Event types recorded by the security core. Callers may record additional
// free-form types; these are the ones the core itself emits or inspects.
const (
	EventPHIAccess         = "phi_access"
	EventPHICreate         = "phi_create"
	EventPHIUpdate         = "phi_update"
	EventPHIDelete         = "phi_delete"
	EventAuthFailure       = "auth_failure"
	EventSecurityViolation = "security_violation"
	EventMFAEnrolled       = "mfa_enrolled"
	EventMFAReplay         = "mfa_replay"
	EventBreakGlassRequest = "break_glass_requested"
	EventBreakGlassGranted = "break_glass_granted"
	EventBreakGlassRevoked = "break_glass_revoked"
	EventBreakGlassExpired = "break_glass_expired"
	EventBreakGlassAccess  = "break_glass_access"
)

// Event is the caller-supplied payload for Append.
type Event struct {
	Chain        string
	ActorID      string
	EventType    string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
}

// Entry is an immutable audit record. EntryHash covers every other field,
// including PrevHash; PrevHash is nil only for the first entry of a chain.
// The only legal operations are append and read.
type Entry struct {
	ID           string         `json:"id"`
	Chain        string         `json:"chain"`
	Seq          int64          `json:"seq"`
	At           time.Time      `json:"at"`
	ActorID      string         `json:"actor_id"`
	EventType    string         `json:"event_type"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	PrevHash     *string        `json:"previous_hash"`
	EntryHash    string         `json:"entry_hash"`
}

// Filter narrows reads over a chain.
type Filter struct {
	Chain string
	From  time.Time
	To    time.Time
	Actor string
	Limit int
}

// Repository is the persistence boundary for audit chains. AppendEntry must be
// atomic and reject an entry whose Seq does not extend the current tail, so
// two concurrent appends computed from the same stale tail can never both
// commit.
type Repository interface {
	AppendEntry(ctx context.Context, entry Entry) error
	Tail(ctx context.Context, chain string) (*Entry, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
}
