package mfa

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for tests.
type MemoryRepository struct {
	mu          sync.Mutex
	enrollments map[string]Enrollment
	codes       map[string][]RecoveryCode
}

// NewMemoryRepository constructs an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		enrollments: make(map[string]Enrollment),
		codes:       make(map[string][]RecoveryCode),
	}
}

func (r *MemoryRepository) SaveEnrollment(ctx context.Context, enrollment Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrollments[enrollment.UserID] = enrollment
	return nil
}

func (r *MemoryRepository) GetEnrollment(ctx context.Context, userID string) (*Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	enrollment, ok := r.enrollments[userID]
	if !ok {
		return nil, nil
	}
	copied := enrollment
	return &copied, nil
}

func (r *MemoryRepository) Activate(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	enrollment, ok := r.enrollments[userID]
	if ok {
		enrollment.Active = true
		r.enrollments[userID] = enrollment
	}
	return nil
}

func (r *MemoryRepository) MarkStep(ctx context.Context, userID string, step int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	enrollment, ok := r.enrollments[userID]
	if !ok {
		return false, nil
	}
	if step <= enrollment.LastStep {
		return false, nil
	}
	enrollment.LastStep = step
	r.enrollments[userID] = enrollment
	return true, nil
}

func (r *MemoryRepository) ReplaceRecoveryCodes(ctx context.Context, userID string, codes []RecoveryCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[userID] = append([]RecoveryCode(nil), codes...)
	return nil
}

func (r *MemoryRepository) ListRecoveryCodes(ctx context.Context, userID string) ([]RecoveryCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecoveryCode(nil), r.codes[userID]...), nil
}

func (r *MemoryRepository) ConsumeRecoveryCode(ctx context.Context, codeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, codes := range r.codes {
		for i, code := range codes {
			if code.ID != codeID {
				continue
			}
			if code.Consumed() {
				return false, nil
			}
			now := time.Now().UTC()
			codes[i].ConsumedAt = &now
			r.codes[userID] = codes
			return true, nil
		}
	}
	return false, nil
}

var _ Repository = (*MemoryRepository)(nil)
