package mfa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/halcyon-health/halcyon/internal/shared"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

func TestEnrollVerifyActivates(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()
	svc := NewService(repo, "Halcyon", nil).WithClock(fixedClock(now))

	prov, err := svc.Enroll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if prov.Secret == "" || !strings.HasPrefix(prov.URL, "otpauth://") {
		t.Fatalf("unexpected provisioning %+v", prov)
	}

	active, err := svc.Enrolled(context.Background(), "u1")
	if err != nil {
		t.Fatalf("enrolled: %v", err)
	}
	if active {
		t.Fatal("enrollment must stay inactive until first verification")
	}

	if err := svc.Verify(context.Background(), "u1", codeAt(t, prov.Secret, now)); err != nil {
		t.Fatalf("verify: %v", err)
	}
	active, err = svc.Enrolled(context.Background(), "u1")
	if err != nil {
		t.Fatalf("enrolled: %v", err)
	}
	if !active {
		t.Fatal("first successful verification must activate the enrollment")
	}
}

func TestVerifyReplayRejected(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 10, 0, time.UTC)
	repo := NewMemoryRepository()
	svc := NewService(repo, "Halcyon", nil).WithClock(fixedClock(now))

	prov, err := svc.Enroll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	code := codeAt(t, prov.Secret, now)
	if err := svc.Verify(context.Background(), "u1", code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if err := svc.Verify(context.Background(), "u1", code); !errors.Is(err, shared.ErrReplay) {
		t.Fatalf("expected ErrReplay, got %v", err)
	}
}

func TestVerifySkewWindow(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 15, 0, time.UTC)
	repo := NewMemoryRepository()
	svc := NewService(repo, "Halcyon", nil).WithClock(fixedClock(now))

	prov, err := svc.Enroll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// Previous and next steps are inside the tolerance.
	if err := svc.Verify(context.Background(), "u1", codeAt(t, prov.Secret, now.Add(-totpPeriod))); err != nil {
		t.Fatalf("t-1 step rejected: %v", err)
	}
	if err := svc.Verify(context.Background(), "u1", codeAt(t, prov.Secret, now.Add(totpPeriod))); err != nil {
		t.Fatalf("t+1 step rejected: %v", err)
	}
	// Two steps out is rejected.
	if err := svc.Verify(context.Background(), "u1", codeAt(t, prov.Secret, now.Add(2*totpPeriod))); err == nil {
		t.Fatal("t+2 step must be rejected")
	}
	if err := svc.Verify(context.Background(), "u1", codeAt(t, prov.Secret, now.Add(-2*totpPeriod))); err == nil {
		t.Fatal("t-2 step must be rejected")
	}
}

func TestVerifyEarlierStepAfterLaterIsReplay(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 15, 0, time.UTC)
	repo := NewMemoryRepository()
	svc := NewService(repo, "Halcyon", nil).WithClock(fixedClock(now))

	prov, err := svc.Enroll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := svc.Verify(context.Background(), "u1", codeAt(t, prov.Secret, now.Add(totpPeriod))); err != nil {
		t.Fatalf("t+1 verify: %v", err)
	}
	// The watermark only moves forward; an older step's code is dead.
	if err := svc.Verify(context.Background(), "u1", codeAt(t, prov.Secret, now.Add(-totpPeriod))); !errors.Is(err, shared.ErrReplay) {
		t.Fatalf("expected ErrReplay for older step, got %v", err)
	}
}

func TestVerifyUnknownUser(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "Halcyon", nil)
	if err := svc.Verify(context.Background(), "ghost", "123456"); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
