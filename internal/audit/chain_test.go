package audit

import (
	"context"
	"testing"
	"time"
)

func appendN(t *testing.T, svc *Service, n int) []Entry {
	t.Helper()
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		entry, err := svc.Append(context.Background(), Event{
			ActorID:      "clin-7",
			EventType:    EventPHIAccess,
			Action:       "read:phi",
			ResourceType: "patient",
			ResourceID:   "42",
			Details:      map[string]any{"field": "notes", "n": i},
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestAppendLinksChain(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	entries := appendN(t, svc, 3)

	if entries[0].PrevHash != nil {
		t.Fatal("first entry must have null previous_hash")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq != entries[i-1].Seq+1 {
			t.Fatalf("sequence gap at %d", i)
		}
		if entries[i].PrevHash == nil || *entries[i].PrevHash != entries[i-1].EntryHash {
			t.Fatalf("entry %d does not link to predecessor", i)
		}
	}
}

func TestVerifyChainFullyValid(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	appendN(t, svc, 5)

	result, err := svc.Verify(context.Background(), ChainGlobal)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid || result.BreakAt != -1 || result.Checked != 5 {
		t.Fatalf("unexpected verification %+v", result)
	}
}

func TestVerifyChainDetectsFieldMutation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	entries := appendN(t, svc, 4)

	mutations := []func(*Entry){
		func(e *Entry) { e.ActorID = "intruder" },
		func(e *Entry) { e.Action = "write:phi" },
		func(e *Entry) { e.ResourceID = "43" },
		func(e *Entry) { e.At = e.At.Add(time.Second) },
		func(e *Entry) { e.Details = map[string]any{"field": "ssn"} },
		func(e *Entry) { e.PrevHash = nil },
	}
	for i := range entries {
		for m, mutate := range mutations {
			if i == 0 && m == len(mutations)-1 {
				continue // first entry legitimately has nil previous_hash
			}
			copied := make([]Entry, len(entries))
			copy(copied, entries)
			mutate(&copied[i])
			result := VerifyChain(copied)
			if result.Valid {
				t.Fatalf("mutation %d of entry %d went undetected", m, i)
			}
			if result.BreakAt != i {
				t.Fatalf("mutation %d of entry %d reported break at %d", m, i, result.BreakAt)
			}
		}
	}
}

func TestVerifyChainDetectsDeletion(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	entries := appendN(t, svc, 3)

	// Delete the middle entry: the gap shows at the index now held by C.
	truncated := []Entry{entries[0], entries[2]}
	result := VerifyChain(truncated)
	if result.Valid || result.BreakAt != 1 {
		t.Fatalf("deletion undetected: %+v", result)
	}
}

func TestVerifyChainDetectsHeadDeletion(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	entries := appendN(t, svc, 3)

	// Drop the genesis entry: the surviving head carries a previous_hash.
	result := VerifyChain(entries[1:])
	if result.Valid || result.BreakAt != 0 {
		t.Fatalf("head deletion undetected: %+v", result)
	}
}

func TestVerifyChainDetectsReordering(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	entries := appendN(t, svc, 3)

	swapped := []Entry{entries[0], entries[2], entries[1]}
	result := VerifyChain(swapped)
	if result.Valid {
		t.Fatal("reordering undetected")
	}
}

func TestVerifyChainDetectsInsertion(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	entries := appendN(t, svc, 3)

	forged := entries[1]
	forged.ID = "00000000-0000-0000-0000-000000000000"
	forged.ActorID = "intruder"
	hash, err := ComputeHash(forged)
	if err != nil {
		t.Fatalf("hash forged: %v", err)
	}
	forged.EntryHash = hash

	inserted := []Entry{entries[0], entries[1], forged, entries[2]}
	result := VerifyChain(inserted)
	if result.Valid {
		t.Fatal("insertion undetected")
	}
}

// microsecondRepository stores timestamps at microsecond precision, the way a
// TIMESTAMPTZ column does.
type microsecondRepository struct {
	*MemoryRepository
}

func (r *microsecondRepository) AppendEntry(ctx context.Context, entry Entry) error {
	entry.At = entry.At.Truncate(time.Microsecond)
	return r.MemoryRepository.AppendEntry(ctx, entry)
}

func TestVerifyChainSurvivesMicrosecondStorage(t *testing.T) {
	svc := NewService(&microsecondRepository{NewMemoryRepository()}, nil)
	// A nanosecond clock must not produce hashes that break once the
	// timestamp round-trips through storage.
	svc.WithClock(func() time.Time { return time.Now().UTC() })
	appendN(t, svc, 3)

	result, err := svc.Verify(context.Background(), ChainGlobal)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid || result.Checked != 3 {
		t.Fatalf("stored chain reported tampering: %+v", result)
	}
}

func TestVerifyChainEmpty(t *testing.T) {
	result := VerifyChain(nil)
	if !result.Valid || result.Checked != 0 {
		t.Fatalf("empty chain must be valid: %+v", result)
	}
}

func TestCanonicalHashStable(t *testing.T) {
	prev := "abc123"
	entry := Entry{
		ID:           "e1",
		Chain:        ChainGlobal,
		Seq:          7,
		At:           time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC),
		ActorID:      "u1",
		EventType:    EventPHIAccess,
		Action:       "read:phi",
		ResourceType: "patient",
		ResourceID:   "42",
		Details:      map[string]any{"b": 2, "a": 1},
		PrevHash:     &prev,
	}
	h1, err := ComputeHash(entry)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := ComputeHash(entry)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatal("canonical hash must be deterministic")
	}

	entry.Details = map[string]any{"a": 1, "b": 2}
	h3, err := ComputeHash(entry)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h3 {
		t.Fatal("details key order must not affect the hash")
	}
}
