// Package crypto implements the symmetric encryption and hashing primitives
// used by the security core: AES-256-GCM authenticated encryption,
// PBKDF2-SHA-256 key derivation, and SHA-256 digests for audit chaining.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/halcyon-health/halcyon/internal/shared"
)

// Engine seals and opens values under a single purpose-bound key. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	aead    cipher.AEAD
	purpose string
}

// NewEngine constructs an Engine over a 32-byte key. The purpose tag is stored
// on every value the engine produces, so the right key can be selected on read.
func NewEngine(key []byte, purpose string) (*Engine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	if purpose == "" {
		return nil, fmt.Errorf("crypto: purpose required")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return &Engine{aead: aead, purpose: purpose}, nil
}

// Purpose returns the key purpose this engine seals under.
func (e *Engine) Purpose() string {
	return e.purpose
}

// Encrypt seals plaintext under a fresh random 96-bit nonce. The associated
// data is not encrypted but is bound into the authentication tag. Nonces are
// never reused with the same key; empty plaintext is a valid input.
func (e *Engine) Encrypt(plaintext, associatedData []byte) (EncryptedValue, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedValue{}, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	ct := e.aead.Seal(nil, nonce, plaintext, associatedData)
	return EncryptedValue{Purpose: e.purpose, Nonce: nonce, Ciphertext: ct}, nil
}

// Decrypt verifies the authentication tag and returns the plaintext. Any
// modification of ciphertext, nonce, or associated data fails with
// shared.ErrIntegrity; no partial plaintext is ever returned.
func (e *Engine) Decrypt(value EncryptedValue, associatedData []byte) ([]byte, error) {
	if value.Purpose != e.purpose {
		return nil, fmt.Errorf("crypto: purpose mismatch %q: %w", value.Purpose, shared.ErrIntegrity)
	}
	if len(value.Nonce) != NonceSize {
		return nil, fmt.Errorf("crypto: bad nonce length: %w", shared.ErrIntegrity)
	}
	plaintext, err := e.aead.Open(nil, value.Nonce, value.Ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("crypto: open: %w", shared.ErrIntegrity)
	}
	return plaintext, nil
}

// Hash returns the SHA-256 digest of b. Deterministic; used for audit-chain
// linking and key verification.
func Hash(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// HashHex returns the SHA-256 digest of b as lowercase hex.
func HashHex(b []byte) string {
	return hex.EncodeToString(Hash(b))
}
