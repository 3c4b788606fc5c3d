// Package mfa implements TOTP enrollment and verification plus one-time
// recovery codes. Verification is constant time, tolerates one time step of
// clock skew, and rejects replayed codes.
package mfa

import (
	"context"
	"time"
)

// Enrollment is a user's TOTP secret. A fresh enrollment stays inactive until
// the first successful verification so a device that never synced cannot lock
// its owner out. One secret is active at a time per user; re-enrolling
// replaces the previous secret.
type Enrollment struct {
	UserID    string
	Secret    string // base32, never logged
	Active    bool
	LastStep  int64 // last accepted TOTP time step, for replay protection
	CreatedAt time.Time
}

// RecoveryCode is the stored form of a one-time recovery credential: a salted
// iterated hash, never the plaintext. Once consumed it must fail all future
// verifications even if the hash would still match.
type RecoveryCode struct {
	ID         string
	UserID     string
	Salt       []byte
	Hash       []byte
	Iterations int
	ConsumedAt *time.Time
}

// Consumed reports whether the code has been used.
func (c RecoveryCode) Consumed() bool {
	return c.ConsumedAt != nil
}

// Provisioning is returned once at enrollment for the authenticator app.
type Provisioning struct {
	Secret string
	URL    string // otpauth:// payload, rendered as a QR by the caller
}

// Repository is the persistence boundary for MFA state. MarkStep and
// ConsumeRecoveryCode must be atomic test-and-set operations.
type Repository interface {
	SaveEnrollment(ctx context.Context, enrollment Enrollment) error
	GetEnrollment(ctx context.Context, userID string) (*Enrollment, error)
	Activate(ctx context.Context, userID string) error
	// MarkStep records the accepted time step iff it is greater than the
	// stored one, returning false when the step was already used.
	MarkStep(ctx context.Context, userID string, step int64) (bool, error)
	ReplaceRecoveryCodes(ctx context.Context, userID string, codes []RecoveryCode) error
	ListRecoveryCodes(ctx context.Context, userID string) ([]RecoveryCode, error)
	// ConsumeRecoveryCode marks the code consumed iff it is not already,
	// returning false on a second consumption attempt.
	ConsumeRecoveryCode(ctx context.Context, codeID string) (bool, error)
}
