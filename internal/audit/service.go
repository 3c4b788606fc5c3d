package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/halcyon-health/halcyon/internal/shared"
)

// ErrStaleTail is returned by repositories when an append does not extend the
// current chain tail. The service retries against the fresh tail.
var ErrStaleTail = errors.New("audit: stale chain tail")

// appendRetries bounds optimistic-concurrency retries against other writers
// (other processes; in-process writers are serialized by the chain mutex).
const appendRetries = 5

// Service appends to and verifies hash-chained audit logs. The
// read-tail-then-append sequence for a chain is serialized through a per-chain
// mutex; the repository additionally enforces the tail check so concurrent
// processes cannot fork a chain.
type Service struct {
	repo   Repository
	logger *slog.Logger
	clock  func() time.Time

	mu     sync.Mutex
	chains map[string]*sync.Mutex

	// verifyGroup collapses concurrent verification requests for the same
	// chain into one full scan.
	verifyGroup singleflight.Group
}

// NewService constructs an audit Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
		chains: make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) chainLock(chain string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.chains[chain]
	if !ok {
		lock = &sync.Mutex{}
		s.chains[chain] = lock
	}
	return lock
}

// Append creates the next entry of the event's chain. The new entry links to
// the current tail via previous_hash and carries a hash over all of its own
// fields. Entries are immutable once persisted.
func (s *Service) Append(ctx context.Context, event Event) (Entry, error) {
	if event.EventType == "" || event.Action == "" {
		return Entry{}, fmt.Errorf("audit: event requires event_type and action")
	}
	chain := event.Chain
	if chain == "" {
		chain = ChainGlobal
	}

	lock := s.chainLock(chain)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		tail, err := s.repo.Tail(ctx, chain)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return Entry{}, fmt.Errorf("audit: read tail: %w", err)
		}

		// Timestamps are truncated to microseconds before hashing: TIMESTAMPTZ
		// stores microsecond precision, so a finer At would not survive a
		// round trip through the repository and verification would recompute
		// a different hash.
		entry := Entry{
			ID:           uuid.NewString(),
			Chain:        chain,
			Seq:          0,
			At:           s.clock().Truncate(time.Microsecond),
			ActorID:      event.ActorID,
			EventType:    event.EventType,
			Action:       event.Action,
			ResourceType: event.ResourceType,
			ResourceID:   event.ResourceID,
			Details:      event.Details,
		}
		if tail != nil {
			entry.Seq = tail.Seq + 1
			prev := tail.EntryHash
			entry.PrevHash = &prev
		}
		hash, err := ComputeHash(entry)
		if err != nil {
			return Entry{}, err
		}
		entry.EntryHash = hash

		if err := s.repo.AppendEntry(ctx, entry); err != nil {
			if errors.Is(err, ErrStaleTail) {
				lastErr = err
				continue
			}
			return Entry{}, fmt.Errorf("audit: append: %w", err)
		}
		return entry, nil
	}
	return Entry{}, fmt.Errorf("audit: append retries exhausted: %w", lastErr)
}

// Verify scans the full chain and reports the first break point, if any.
// A detected break is an integrity failure, not a transient error.
func (s *Service) Verify(ctx context.Context, chain string) (Verification, error) {
	if chain == "" {
		chain = ChainGlobal
	}
	v, err, _ := s.verifyGroup.Do(chain, func() (any, error) {
		entries, err := s.repo.List(ctx, Filter{Chain: chain})
		if err != nil {
			return Verification{}, fmt.Errorf("audit: list chain: %w", err)
		}
		result := VerifyChain(entries)
		if !result.Valid && s.logger != nil {
			s.logger.Error("audit chain break detected",
				slog.String("chain", chain),
				slog.Int("break_at", result.BreakAt),
			)
		}
		return result, nil
	})
	if err != nil {
		return Verification{}, err
	}
	return v.(Verification), nil
}

// List reads entries matching the filter, in chain order.
func (s *Service) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Chain == "" {
		filter.Chain = ChainGlobal
	}
	return s.repo.List(ctx, filter)
}
