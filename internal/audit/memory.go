package audit

import (
	"context"
	"sync"

	"github.com/halcyon-health/halcyon/internal/shared"
)

// MemoryRepository is an in-process Repository used by tests and by callers
// that bring their own durable storage. Appends enforce the same tail check
// as the SQL repository.
type MemoryRepository struct {
	mu     sync.Mutex
	chains map[string][]Entry
}

// NewMemoryRepository constructs an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{chains: make(map[string][]Entry)}
}

// AppendEntry stores the entry iff it extends the current tail.
func (r *MemoryRepository) AppendEntry(ctx context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.chains[entry.Chain]
	if entry.Seq != int64(len(entries)) {
		return ErrStaleTail
	}
	r.chains[entry.Chain] = append(entries, entry)
	return nil
}

// Tail returns the last entry of the chain, or shared.ErrNotFound when empty.
func (r *MemoryRepository) Tail(ctx context.Context, chain string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.chains[chain]
	if len(entries) == 0 {
		return nil, shared.ErrNotFound
	}
	tail := entries[len(entries)-1]
	return &tail, nil
}

// List returns entries in sequence order, applying the filter.
func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.chains[filter.Chain] {
		if !filter.From.IsZero() && e.At.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.At.After(filter.To) {
			continue
		}
		if filter.Actor != "" && e.ActorID != filter.Actor {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
