package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/halcyon-health/halcyon/internal/shared"
)

// EncodedPrefix marks a serialized encrypted value
// (format: ENC:v1:purpose:base64(nonce):base64(ciphertext|tag)).
const EncodedPrefix = "ENC:v1:"

// NonceSize is the AES-GCM nonce length (96 bits).
const NonceSize = 12

// EncryptedValue is an opaque authenticated ciphertext. The GCM tag is carried
// at the tail of Ciphertext. Purpose names the key the value was sealed under.
type EncryptedValue struct {
	Purpose    string
	Nonce      []byte
	Ciphertext []byte
}

// Encode renders the value in its stable storage form.
func (v EncryptedValue) Encode() string {
	return EncodedPrefix + v.Purpose + ":" +
		base64.StdEncoding.EncodeToString(v.Nonce) + ":" +
		base64.StdEncoding.EncodeToString(v.Ciphertext)
}

// DecodeValue parses the storage form back into an EncryptedValue.
func DecodeValue(s string) (EncryptedValue, error) {
	if !strings.HasPrefix(s, EncodedPrefix) {
		return EncryptedValue{}, fmt.Errorf("crypto: decode value: missing prefix: %w", shared.ErrIntegrity)
	}
	parts := strings.Split(strings.TrimPrefix(s, EncodedPrefix), ":")
	if len(parts) != 3 {
		return EncryptedValue{}, fmt.Errorf("crypto: decode value: malformed: %w", shared.ErrIntegrity)
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(nonce) != NonceSize {
		return EncryptedValue{}, fmt.Errorf("crypto: decode value: bad nonce: %w", shared.ErrIntegrity)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return EncryptedValue{}, fmt.Errorf("crypto: decode value: bad ciphertext: %w", shared.ErrIntegrity)
	}
	return EncryptedValue{Purpose: parts[0], Nonce: nonce, Ciphertext: ct}, nil
}
