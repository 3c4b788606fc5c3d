package audit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testDetector(t *testing.T) *Detector {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDetector(client, DefaultDetectorConfig())
}

func TestBruteForceSignalRaisesAtThreshold(t *testing.T) {
	detector := testDetector(t)
	ctx := context.Background()

	var signal Signal
	var err error
	for i := 0; i < DefaultBruteForceThreshold; i++ {
		signal, err = detector.RecordAuthFailure(ctx, "10.0.0.9")
		if err != nil {
			t.Fatalf("record failure %d: %v", i, err)
		}
		if i < DefaultBruteForceThreshold-1 && signal.Severity != SeverityNone {
			t.Fatalf("signal raised too early at %d: %+v", i+1, signal)
		}
	}
	if signal.Severity != SeverityWarning {
		t.Fatalf("expected warning at threshold, got %+v", signal)
	}

	for i := 0; i < DefaultBruteForceThreshold; i++ {
		signal, err = detector.RecordAuthFailure(ctx, "10.0.0.9")
		if err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if signal.Severity != SeverityHigh {
		t.Fatalf("expected high severity at 2x threshold, got %+v", signal)
	}
}

func TestBruteForceWindowSlides(t *testing.T) {
	detector := testDetector(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	detector.WithClock(func() time.Time { return now })

	for i := 0; i < DefaultBruteForceThreshold; i++ {
		if _, err := detector.RecordAuthFailure(ctx, "attacker"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	now = base.Add(DefaultBruteForceWindow + time.Minute)
	signal, err := detector.RecordAuthFailure(ctx, "attacker")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if signal.Severity != SeverityNone || signal.Count != 1 {
		t.Fatalf("expected old failures outside window to age out, got %+v", signal)
	}
}

func TestAnomalousAccessSignalPerActor(t *testing.T) {
	detector := testDetector(t)
	ctx := context.Background()

	var signal Signal
	var err error
	for i := 0; i < DefaultAnomalyThreshold; i++ {
		signal, err = detector.RecordPHIAccess(ctx, "clin-7")
		if err != nil {
			t.Fatalf("record phi %d: %v", i, err)
		}
	}
	if signal.Severity != SeverityWarning {
		t.Fatalf("expected warning at threshold, got %+v", signal)
	}

	other, err := detector.RecordPHIAccess(ctx, "clin-8")
	if err != nil {
		t.Fatalf("record phi: %v", err)
	}
	if other.Severity != SeverityNone {
		t.Fatalf("signals must be per actor, got %+v", other)
	}
}

func TestScanEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var entries []Entry
	for i := 0; i < 6; i++ {
		entries = append(entries, Entry{
			At:        now.Add(-time.Minute),
			EventType: EventAuthFailure,
			ActorID:   "anon",
			Details:   map[string]any{"origin": "10.0.0.9"},
		})
	}
	for i := 0; i < 51; i++ {
		entries = append(entries, Entry{
			At:        now.Add(-30 * time.Minute),
			EventType: EventPHIAccess,
			ActorID:   "clin-7",
		})
	}
	// Outside both windows: ignored.
	entries = append(entries, Entry{
		At:        now.Add(-2 * time.Hour),
		EventType: EventAuthFailure,
		Details:   map[string]any{"origin": "10.0.0.9"},
	})

	signals := ScanEntries(entries, DefaultDetectorConfig(), now)
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %+v", signals)
	}
	kinds := map[string]Signal{}
	for _, s := range signals {
		kinds[s.Kind] = s
	}
	if s := kinds["brute_force"]; s.Subject != "10.0.0.9" || s.Count != 6 {
		t.Fatalf("unexpected brute force signal %+v", s)
	}
	if s := kinds["anomalous_access"]; s.Subject != "clin-7" || s.Count != 51 {
		t.Fatalf("unexpected anomaly signal %+v", s)
	}
}
