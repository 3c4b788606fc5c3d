package crypto

import (
	"bytes"
	"testing"
)

func TestDeriveKeyPurposeSeparation(t *testing.T) {
	secret := []byte("master")
	salt := []byte("0123456789abcdef")
	phi := DeriveKey(secret, salt, "phi-field", MinIterations)
	audit := DeriveKey(secret, salt, "audit-hmac", MinIterations)
	if len(phi) != KeySize || len(audit) != KeySize {
		t.Fatalf("unexpected key sizes %d/%d", len(phi), len(audit))
	}
	if bytes.Equal(phi, audit) {
		t.Fatal("purposes must yield independent keys")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	a := DeriveKey([]byte("master"), salt, "phi-field", MinIterations)
	b := DeriveKey([]byte("master"), salt, "phi-field", MinIterations)
	if !bytes.Equal(a, b) {
		t.Fatal("derivation must be deterministic")
	}
}

func TestDeriveKeyIterationFloor(t *testing.T) {
	salt := []byte("0123456789abcdef")
	low := DeriveKey([]byte("master"), salt, "phi-field", 10)
	def := DeriveKey([]byte("master"), salt, "phi-field", DefaultIterations)
	if !bytes.Equal(low, def) {
		t.Fatal("iteration counts below the floor must be raised to the default")
	}
}

func TestKeyVerifierDetectsWrongPassphrase(t *testing.T) {
	salt := []byte("0123456789abcdef")
	key := DeriveKey([]byte("correct horse"), salt, "phi-field", MinIterations)
	verifier := NewKeyVerifier(key)

	if !verifier.Verify(key) {
		t.Fatal("verifier rejected the original key")
	}
	wrong := DeriveKey([]byte("battery staple"), salt, "phi-field", MinIterations)
	if verifier.Verify(wrong) {
		t.Fatal("verifier accepted a key derived from the wrong passphrase")
	}
}

func TestHashDeterministicAndSensitive(t *testing.T) {
	a := HashHex([]byte("entry"))
	b := HashHex([]byte("entry"))
	c := HashHex([]byte("entrz"))
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == c {
		t.Fatal("single byte change must alter the digest")
	}
	if len(a) != 64 {
		t.Fatalf("expected 256-bit hex digest, got %d chars", len(a))
	}
}
