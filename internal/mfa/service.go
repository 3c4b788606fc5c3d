package mfa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/halcyon-health/halcyon/internal/shared"
)

const (
	totpPeriod = 30 * time.Second
	totpDigits = otp.DigitsSix
	// totpSkew is the clock-skew tolerance in time steps on each side.
	totpSkew = 1
)

// Service issues and verifies TOTP codes and recovery codes.
type Service struct {
	repo    Repository
	issuer  string
	logger  *slog.Logger
	clock   func() time.Time
	kdfIter int
}

// NewService constructs the MFA service. issuer names the deployment in
// provisioning URLs.
func NewService(repo Repository, issuer string, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		issuer:  issuer,
		logger:  logger,
		clock:   func() time.Time { return time.Now().UTC() },
		kdfIter: recoveryIterations,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Enroll generates a fresh secret for the user and returns provisioning info.
// The enrollment is inactive until the first successful Verify.
func (s *Service) Enroll(ctx context.Context, userID string) (Provisioning, error) {
	if userID == "" {
		return Provisioning{}, fmt.Errorf("mfa: user id required")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: userID,
		Period:      uint(totpPeriod.Seconds()),
		Digits:      totpDigits,
	})
	if err != nil {
		return Provisioning{}, fmt.Errorf("mfa: generate secret: %w", err)
	}
	enrollment := Enrollment{
		UserID:    userID,
		Secret:    key.Secret(),
		Active:    false,
		LastStep:  0,
		CreatedAt: s.clock(),
	}
	if err := s.repo.SaveEnrollment(ctx, enrollment); err != nil {
		return Provisioning{}, fmt.Errorf("mfa: save enrollment: %w", err)
	}
	return Provisioning{Secret: key.Secret(), URL: key.URL()}, nil
}

// Verify checks a submitted code against the current time step and its two
// neighbors. The first success activates a pending enrollment. Each time
// step's code is accepted at most once; a replay fails with shared.ErrReplay.
// All failures are generic to the caller.
func (s *Service) Verify(ctx context.Context, userID, code string) error {
	enrollment, err := s.repo.GetEnrollment(ctx, userID)
	if err != nil {
		return fmt.Errorf("mfa: load enrollment: %w", err)
	}
	if enrollment == nil {
		return shared.ErrNotFound
	}

	now := s.clock()
	step, ok := matchStep(enrollment.Secret, code, now)
	if !ok {
		return fmt.Errorf("mfa: code rejected: %w", shared.ErrNotFound)
	}

	accepted, err := s.repo.MarkStep(ctx, userID, step)
	if err != nil {
		return fmt.Errorf("mfa: mark step: %w", err)
	}
	if !accepted {
		if s.logger != nil {
			s.logger.Warn("totp replay rejected", slog.String("user", userID))
		}
		return shared.ErrReplay
	}
	if !enrollment.Active {
		if err := s.repo.Activate(ctx, userID); err != nil {
			return fmt.Errorf("mfa: activate: %w", err)
		}
	}
	return nil
}

// matchStep finds which tolerated time step, if any, the code belongs to.
// Each candidate step is checked individually (skew zero) so the accepted
// step can be recorded for replay protection; the library compares in
// constant time.
func matchStep(secret, code string, now time.Time) (int64, bool) {
	for delta := -totpSkew; delta <= totpSkew; delta++ {
		at := now.Add(time.Duration(delta) * totpPeriod)
		ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
			Period:    uint(totpPeriod.Seconds()),
			Skew:      0,
			Digits:    totpDigits,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err == nil && ok {
			return at.Unix() / int64(totpPeriod.Seconds()), true
		}
	}
	return 0, false
}

// Enrolled reports whether the user has an active enrollment.
func (s *Service) Enrolled(ctx context.Context, userID string) (bool, error) {
	enrollment, err := s.repo.GetEnrollment(ctx, userID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}
	return enrollment != nil && enrollment.Active, nil
}
