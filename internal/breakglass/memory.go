package breakglass

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for tests.
type MemoryRepository struct {
	mu       sync.Mutex
	requests map[string]Request
	grants   map[string]Grant
}

// NewMemoryRepository constructs an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		requests: make(map[string]Request),
		grants:   make(map[string]Grant),
	}
}

func (r *MemoryRepository) SaveRequest(ctx context.Context, request Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[request.ID] = request
	return nil
}

func (r *MemoryRepository) GetRequest(ctx context.Context, id string) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	copied := request
	return &copied, nil
}

func (r *MemoryRepository) MarkRequestGranted(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request, ok := r.requests[id]; ok {
		request.Status = StatusGranted
		r.requests[id] = request
	}
	return nil
}

func (r *MemoryRepository) SaveGrant(ctx context.Context, grant Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grant.ID] = grant
	return nil
}

func (r *MemoryRepository) GetGrant(ctx context.Context, id string) (*Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.grants[id]
	if !ok {
		return nil, nil
	}
	copied := grant
	return &copied, nil
}

func (r *MemoryRepository) LatestGrant(ctx context.Context, principalID string) (*Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []Grant
	for _, grant := range r.grants {
		if grant.PrincipalID == principalID && grant.RevokedAt == nil {
			candidates = append(candidates, grant)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].IssuedAt.After(candidates[j].IssuedAt)
	})
	latest := candidates[0]
	return &latest, nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, grantID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.grants[grantID]
	if !ok || grant.RevokedAt != nil {
		return false, nil
	}
	grant.RevokedAt = &at
	r.grants[grantID] = grant
	return true, nil
}

func (r *MemoryRepository) ListLapsed(ctx context.Context, now time.Time) ([]Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lapsed []Grant
	for _, grant := range r.grants {
		if grant.RevokedAt == nil && !grant.Swept && !now.Before(grant.ExpiresAt) {
			lapsed = append(lapsed, grant)
		}
	}
	sort.Slice(lapsed, func(i, j int) bool { return lapsed[i].IssuedAt.Before(lapsed[j].IssuedAt) })
	return lapsed, nil
}

func (r *MemoryRepository) MarkSwept(ctx context.Context, grantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if grant, ok := r.grants[grantID]; ok {
		grant.Swept = true
		r.grants[grantID] = grant
	}
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
