package mfa

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/halcyon-health/halcyon/internal/crypto"
	"github.com/halcyon-health/halcyon/internal/shared"
)

// DefaultRecoveryCodes is the size of a freshly issued recovery code set.
const DefaultRecoveryCodes = 10

const (
	// recoveryIterations matches the field-encryption KDF cost; recovery
	// codes are low entropy compared to real keys and need the stretch.
	recoveryIterations = crypto.DefaultIterations
	recoveryCodeLen    = 10
	// recoveryAlphabet avoids ambiguous characters (0/O, 1/I/L).
	recoveryAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// GenerateRecoveryCodes creates n one-time codes, replacing any existing set.
// The plaintext codes are returned exactly once; only salted iterated hashes
// are stored.
func (s *Service) GenerateRecoveryCodes(ctx context.Context, userID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("mfa: code count must be positive")
	}
	plaintexts := make([]string, 0, n)
	stored := make([]RecoveryCode, 0, n)
	for i := 0; i < n; i++ {
		code, err := newRecoveryCode()
		if err != nil {
			return nil, err
		}
		salt, err := crypto.NewSalt()
		if err != nil {
			return nil, err
		}
		stored = append(stored, RecoveryCode{
			ID:         uuid.NewString(),
			UserID:     userID,
			Salt:       salt,
			Hash:       hashRecoveryCode(code, salt, s.kdfIter),
			Iterations: s.kdfIter,
		})
		plaintexts = append(plaintexts, code)
	}
	if err := s.repo.ReplaceRecoveryCodes(ctx, userID, stored); err != nil {
		return nil, fmt.Errorf("mfa: store recovery codes: %w", err)
	}
	return plaintexts, nil
}

// VerifyRecovery checks a submitted recovery code against the user's
// unconsumed set using constant-time comparison. On match the code is
// atomically consumed; a consumed code always fails afterward, surfaced as
// shared.ErrReplay and logged as a security event.
func (s *Service) VerifyRecovery(ctx context.Context, userID, submitted string) error {
	codes, err := s.repo.ListRecoveryCodes(ctx, userID)
	if err != nil {
		return fmt.Errorf("mfa: list recovery codes: %w", err)
	}

	replayed := false
	for _, code := range codes {
		candidate := hashRecoveryCode(submitted, code.Salt, code.Iterations)
		if subtle.ConstantTimeCompare(candidate, code.Hash) != 1 {
			continue
		}
		if code.Consumed() {
			replayed = true
			continue
		}
		consumed, err := s.repo.ConsumeRecoveryCode(ctx, code.ID)
		if err != nil {
			return fmt.Errorf("mfa: consume recovery code: %w", err)
		}
		if !consumed {
			// Lost the consume race: same as replay.
			replayed = true
			continue
		}
		return nil
	}
	if replayed {
		if s.logger != nil {
			s.logger.Warn("recovery code replay rejected", slog.String("user", userID))
		}
		return shared.ErrReplay
	}
	return shared.ErrNotFound
}

func hashRecoveryCode(code string, salt []byte, iterations int) []byte {
	return crypto.DeriveKey([]byte(code), salt, "recovery-code", iterations)
}

func newRecoveryCode() (string, error) {
	raw := make([]byte, recoveryCodeLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("mfa: generate recovery code: %w", err)
	}
	out := make([]byte, 0, recoveryCodeLen+2)
	for i, b := range raw {
		if i == 4 || i == 8 {
			out = append(out, '-')
		}
		out = append(out, recoveryAlphabet[int(b)%len(recoveryAlphabet)])
	}
	return string(out), nil
}
