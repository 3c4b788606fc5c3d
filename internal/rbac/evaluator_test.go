package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halcyon-health/halcyon/internal/shared"
)

type stubGrantSource struct {
	grant *ElevatedGrant
	err   error
}

func (s *stubGrantSource) ActiveGrant(ctx context.Context, principalID string) (*ElevatedGrant, error) {
	return s.grant, s.err
}

type recordingSink struct {
	events []AccessEvent
	err    error
}

func (r *recordingSink) RecordAccess(ctx context.Context, event AccessEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func testModel(t *testing.T) *PermissionModel {
	t.Helper()
	model, err := ParsePolicy([]byte(validPolicy))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return model
}

func TestEvaluateRolePath(t *testing.T) {
	sink := &recordingSink{}
	eval := NewEvaluator(testModel(t), nil, sink, nil)
	principal := shared.Principal{ID: "u1", Roles: []string{"therapist"}}

	decision, err := eval.Evaluate(context.Background(), principal, "read:phi")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Allowed || decision.Source != SourceRole {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if len(sink.events) != 0 {
		t.Fatalf("role-sourced allow must not write break-glass events, got %d", len(sink.events))
	}

	decision, err = eval.Evaluate(context.Background(), principal, "export:audit")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatal("therapist must not export audit")
	}
}

func TestEvaluateActiveGrantAllowsAndRecordsOnce(t *testing.T) {
	now := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	grants := &stubGrantSource{grant: &ElevatedGrant{
		ID:          "g1",
		PrincipalID: "u1",
		Permissions: []string{"export:audit"},
		ExpiresAt:   now.Add(time.Hour),
	}}
	sink := &recordingSink{}
	eval := NewEvaluator(testModel(t), grants, sink, nil).WithClock(func() time.Time { return now })
	principal := shared.Principal{ID: "u1", Roles: []string{"therapist"}}

	decision, err := eval.Evaluate(context.Background(), principal, "export:audit")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Allowed || decision.Source != SourceBreakGlass || decision.GrantID != "g1" {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected exactly one break_glass_access event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.EventType != EventBreakGlassAccess || ev.Action != "export:audit" || ev.ResourceID != "g1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestEvaluateExpiredGrantIsAbsent(t *testing.T) {
	now := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	grants := &stubGrantSource{grant: &ElevatedGrant{
		ID:          "g1",
		PrincipalID: "u1",
		Permissions: []string{"export:audit"},
		ExpiresAt:   now, // expires exactly now: no grace period
	}}
	sink := &recordingSink{}
	eval := NewEvaluator(testModel(t), grants, sink, nil).WithClock(func() time.Time { return now })
	principal := shared.Principal{ID: "u1", Roles: []string{"therapist"}}

	decision, err := eval.Evaluate(context.Background(), principal, "export:audit")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expired grant must evaluate as absent")
	}
	if len(sink.events) != 0 {
		t.Fatalf("expired grant must not produce usage events, got %d", len(sink.events))
	}
}

func TestEvaluateGrantNotCoveringFallsBack(t *testing.T) {
	now := time.Now().UTC()
	grants := &stubGrantSource{grant: &ElevatedGrant{
		ID:          "g1",
		PrincipalID: "u1",
		Permissions: []string{"export:audit"},
		ExpiresAt:   now.Add(time.Hour),
	}}
	sink := &recordingSink{}
	eval := NewEvaluator(testModel(t), grants, sink, nil)
	principal := shared.Principal{ID: "u1", Roles: []string{"therapist"}}

	decision, err := eval.Evaluate(context.Background(), principal, "read:phi")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Allowed || decision.Source != SourceRole {
		t.Fatalf("expected role fallback, got %+v", decision)
	}
	if len(sink.events) != 0 {
		t.Fatal("role fallback must not write break-glass events")
	}
}

func TestEvaluateUnauditableGrantFailsClosed(t *testing.T) {
	now := time.Now().UTC()
	grants := &stubGrantSource{grant: &ElevatedGrant{
		ID:          "g1",
		PrincipalID: "u1",
		Permissions: []string{Wildcard},
		ExpiresAt:   now.Add(time.Hour),
	}}
	sink := &recordingSink{err: errors.New("audit store down")}
	eval := NewEvaluator(testModel(t), grants, sink, nil)
	principal := shared.Principal{ID: "u1", Roles: nil}

	decision, err := eval.Evaluate(context.Background(), principal, "read:phi")
	if err == nil {
		t.Fatal("expected error when break-glass use cannot be audited")
	}
	if decision.Allowed {
		t.Fatal("unauditable elevated access must not be allowed")
	}
}

func TestRecordAccessForwards(t *testing.T) {
	sink := &recordingSink{}
	eval := NewEvaluator(testModel(t), nil, sink, nil)
	err := eval.RecordAccess(context.Background(), AccessEvent{
		ActorID: "u1", EventType: "phi_access", Action: "read:phi",
		ResourceType: "patient", ResourceID: "42",
	})
	if err != nil {
		t.Fatalf("record access: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
}
