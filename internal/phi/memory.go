package phi

import (
	"context"
	"sync"

	"github.com/halcyon-health/halcyon/internal/shared"
)

// MemoryRepository is an in-process blob store for tests.
type MemoryRepository struct {
	mu    sync.Mutex
	blobs map[string]map[string]string
}

// NewMemoryRepository constructs an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{blobs: make(map[string]map[string]string)}
}

func (r *MemoryRepository) Put(ctx context.Context, recordID, field, blob string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fields, ok := r.blobs[recordID]
	if !ok {
		fields = make(map[string]string)
		r.blobs[recordID] = fields
	}
	fields[field] = blob
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, recordID, field string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	blob, ok := r.blobs[recordID][field]
	if !ok {
		return "", shared.ErrNotFound
	}
	return blob, nil
}

func (r *MemoryRepository) DeleteRecord(ctx context.Context, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blobs, recordID)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
