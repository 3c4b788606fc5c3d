package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the salt length for key derivation.
	SaltSize = 16
	// DefaultIterations follows current OWASP guidance for PBKDF2-SHA-256.
	DefaultIterations = 210_000
	// MinIterations is the floor enforced on configured iteration counts.
	MinIterations = 100_000
)

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches a master secret into a purpose-bound subkey using
// PBKDF2-HMAC-SHA-256. The purpose string is mixed into the salt input so the
// same master secret yields independent keys per use case ("phi-field",
// "audit-hmac", ...). Iteration counts below MinIterations are raised to
// DefaultIterations.
func DeriveKey(secret, salt []byte, purpose string, iterations int) []byte {
	if iterations < MinIterations {
		iterations = DefaultIterations
	}
	info := make([]byte, 0, len(salt)+1+len(purpose))
	info = append(info, salt...)
	info = append(info, 0x00)
	info = append(info, purpose...)
	return pbkdf2.Key(secret, info, iterations, KeySize, sha256.New)
}

// KeyVerifier holds a digest of a previously derived key so a re-derivation
// from a wrong passphrase is detected deterministically instead of silently
// producing a different key that appears to work.
type KeyVerifier struct {
	check [sha256.Size]byte
}

// NewKeyVerifier captures the verification digest for a derived key.
func NewKeyVerifier(key []byte) KeyVerifier {
	return KeyVerifier{check: sha256.Sum256(key)}
}

// Verify reports whether the candidate key matches the captured digest.
// Comparison is constant time.
func (v KeyVerifier) Verify(key []byte) bool {
	sum := sha256.Sum256(key)
	return subtle.ConstantTimeCompare(v.check[:], sum[:]) == 1
}

// ZeroBytes wipes key material after use.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
