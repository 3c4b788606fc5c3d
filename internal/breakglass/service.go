package breakglass

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-health/halcyon/internal/audit"
	"github.com/halcyon-health/halcyon/internal/rbac"
	"github.com/halcyon-health/halcyon/internal/shared"
)

// DefaultMaxTTL bounds grant lifetimes when no limit is configured.
const DefaultMaxTTL = 4 * time.Hour

// Service manages the break-glass lifecycle:
// Requested -> Granted -> {Active, Expired, Revoked}.
type Service struct {
	repo   Repository
	audit  *audit.Service
	chain  string
	maxTTL time.Duration
	logger *slog.Logger
	clock  func() time.Time
}

// NewService constructs the manager. maxTTL <= 0 falls back to DefaultMaxTTL.
func NewService(repo Repository, auditSvc *audit.Service, chain string, maxTTL time.Duration, logger *slog.Logger) *Service {
	if maxTTL <= 0 {
		maxTTL = DefaultMaxTTL
	}
	if chain == "" {
		chain = audit.ChainGlobal
	}
	return &Service{
		repo:   repo,
		audit:  auditSvc,
		chain:  chain,
		maxTTL: maxTTL,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Request records a petition for emergency access. The justification is
// mandatory and is preserved verbatim in the audit trail even if the request
// is never granted.
func (s *Service) Request(ctx context.Context, principal shared.Principal, justification string) (Request, error) {
	justification = strings.TrimSpace(justification)
	if justification == "" {
		return Request{}, fmt.Errorf("breakglass: justification required")
	}

	request := Request{
		ID:            uuid.NewString(),
		PrincipalID:   principal.ID,
		Justification: justification,
		Status:        StatusPending,
		RequestedAt:   s.clock(),
	}
	entry, err := s.audit.Append(ctx, audit.Event{
		Chain:        s.chain,
		ActorID:      principal.ID,
		EventType:    audit.EventBreakGlassRequest,
		Action:       "request",
		ResourceType: "break_glass_request",
		ResourceID:   request.ID,
		Details:      map[string]any{"justification": justification},
	})
	if err != nil {
		return Request{}, fmt.Errorf("breakglass: audit request: %w", err)
	}
	request.AuditEntryID = entry.ID
	if err := s.repo.SaveRequest(ctx, request); err != nil {
		return Request{}, fmt.Errorf("breakglass: save request: %w", err)
	}
	return request, nil
}

// Grant approves a pending request with the given permission set and TTL.
// TTLs are clamped to the configured maximum. Self-approval is permitted but
// is made structurally explicit and always logged; whether to forbid it is an
// operator policy decision, not this core's.
func (s *Service) Grant(ctx context.Context, requestID, approverID string, permissions []string, ttl time.Duration) (Grant, error) {
	request, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Grant{}, fmt.Errorf("breakglass: load request: %w", err)
	}
	if request == nil {
		return Grant{}, shared.ErrNotFound
	}
	if request.Status != StatusPending {
		return Grant{}, fmt.Errorf("breakglass: request %s already %s", requestID, request.Status)
	}
	if len(permissions) == 0 {
		return Grant{}, fmt.Errorf("breakglass: granted permission set must not be empty")
	}
	if ttl <= 0 || ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	now := s.clock()
	grant := Grant{
		ID:            uuid.NewString(),
		RequestID:     request.ID,
		PrincipalID:   request.PrincipalID,
		ApproverID:    approverID,
		SelfApproved:  approverID == request.PrincipalID,
		Permissions:   append([]string(nil), permissions...),
		Justification: request.Justification,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
	entry, err := s.audit.Append(ctx, audit.Event{
		Chain:        s.chain,
		ActorID:      approverID,
		EventType:    audit.EventBreakGlassGranted,
		Action:       "grant",
		ResourceType: "elevated_grant",
		ResourceID:   grant.ID,
		Details: map[string]any{
			"principal":     grant.PrincipalID,
			"approver":      approverID,
			"self_approved": grant.SelfApproved,
			"permissions":   grant.Permissions,
			"expires_at":    grant.ExpiresAt.Format(time.RFC3339),
			"justification": grant.Justification,
		},
	})
	if err != nil {
		return Grant{}, fmt.Errorf("breakglass: audit grant: %w", err)
	}
	grant.AuditEntryID = entry.ID
	if err := s.repo.SaveGrant(ctx, grant); err != nil {
		return Grant{}, fmt.Errorf("breakglass: save grant: %w", err)
	}
	if err := s.repo.MarkRequestGranted(ctx, request.ID); err != nil {
		return Grant{}, fmt.Errorf("breakglass: mark request granted: %w", err)
	}
	if grant.SelfApproved && s.logger != nil {
		s.logger.Warn("self-approved break-glass grant",
			slog.String("principal", grant.PrincipalID),
			slog.String("grant", grant.ID),
		)
	}
	return grant, nil
}

// Revoke ends a grant immediately and audits the action. Revoking an already
// revoked grant is a no-op.
func (s *Service) Revoke(ctx context.Context, grantID, actorID string) error {
	revoked, err := s.repo.Revoke(ctx, grantID, s.clock())
	if err != nil {
		return fmt.Errorf("breakglass: revoke: %w", err)
	}
	if !revoked {
		return nil
	}
	_, err = s.audit.Append(ctx, audit.Event{
		Chain:        s.chain,
		ActorID:      actorID,
		EventType:    audit.EventBreakGlassRevoked,
		Action:       "revoke",
		ResourceType: "elevated_grant",
		ResourceID:   grantID,
	})
	if err != nil {
		return fmt.Errorf("breakglass: audit revoke: %w", err)
	}
	return nil
}

// ActiveGrant implements rbac.GrantSource. Expired and revoked grants are
// reported as absent; there is no expired-but-still-valid window.
func (s *Service) ActiveGrant(ctx context.Context, principalID string) (*rbac.ElevatedGrant, error) {
	grant, err := s.repo.LatestGrant(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if grant == nil || grant.State(s.clock()) != StateActive {
		return nil, nil
	}
	return &rbac.ElevatedGrant{
		ID:          grant.ID,
		PrincipalID: grant.PrincipalID,
		Permissions: append([]string(nil), grant.Permissions...),
		ExpiresAt:   grant.ExpiresAt,
	}, nil
}

// SweepExpired records break_glass_expired audit entries for grants that
// lapsed since the last sweep. Purely observational: evaluation never depends
// on the sweep having run.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	lapsed, err := s.repo.ListLapsed(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("breakglass: list lapsed: %w", err)
	}
	for _, grant := range lapsed {
		_, err := s.audit.Append(ctx, audit.Event{
			Chain:        s.chain,
			ActorID:      grant.PrincipalID,
			EventType:    audit.EventBreakGlassExpired,
			Action:       "expire",
			ResourceType: "elevated_grant",
			ResourceID:   grant.ID,
			Details:      map[string]any{"expired_at": grant.ExpiresAt.Format(time.RFC3339)},
		})
		if err != nil {
			return 0, fmt.Errorf("breakglass: audit expiry: %w", err)
		}
		if err := s.repo.MarkSwept(ctx, grant.ID); err != nil {
			return 0, fmt.Errorf("breakglass: mark swept: %w", err)
		}
	}
	return len(lapsed), nil
}

var _ rbac.GrantSource = (*Service)(nil)
