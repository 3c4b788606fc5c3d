// Package phi is the persistence boundary for sensitive fields. Values are
// sealed by the crypto engine before storage and verified on every read; a
// logically deleted record leaves no ciphertext behind.
package phi

import (
	"context"
	"fmt"

	"github.com/halcyon-health/halcyon/internal/crypto"
)

// Repository stores opaque encrypted blobs keyed by record and field.
type Repository interface {
	Put(ctx context.Context, recordID, field, blob string) error
	Get(ctx context.Context, recordID, field string) (string, error)
	// DeleteRecord removes every blob of the record.
	DeleteRecord(ctx context.Context, recordID string) error
}

// Vault encrypts and decrypts record fields. The associated data binds each
// ciphertext to its record and field, so a blob moved between rows fails
// verification.
type Vault struct {
	engine *crypto.Engine
	repo   Repository
}

// NewVault constructs a Vault over a purpose-bound engine.
func NewVault(engine *crypto.Engine, repo Repository) *Vault {
	return &Vault{engine: engine, repo: repo}
}

func fieldAAD(recordID, field string) []byte {
	return []byte(recordID + "/" + field)
}

// Put seals and stores one field of a record, replacing any previous value.
func (v *Vault) Put(ctx context.Context, recordID, field string, plaintext []byte) error {
	if recordID == "" || field == "" {
		return fmt.Errorf("phi: record id and field required")
	}
	value, err := v.engine.Encrypt(plaintext, fieldAAD(recordID, field))
	if err != nil {
		return fmt.Errorf("phi: seal %s/%s: %w", recordID, field, err)
	}
	return v.repo.Put(ctx, recordID, field, value.Encode())
}

// Get loads and opens one field. Any tampering fails with shared.ErrIntegrity
// and no partial plaintext.
func (v *Vault) Get(ctx context.Context, recordID, field string) ([]byte, error) {
	blob, err := v.repo.Get(ctx, recordID, field)
	if err != nil {
		return nil, err
	}
	value, err := crypto.DecodeValue(blob)
	if err != nil {
		return nil, err
	}
	plaintext, err := v.engine.Decrypt(value, fieldAAD(recordID, field))
	if err != nil {
		return nil, fmt.Errorf("phi: open %s/%s: %w", recordID, field, err)
	}
	return plaintext, nil
}

// DeleteRecord drops all ciphertext belonging to the record.
func (v *Vault) DeleteRecord(ctx context.Context, recordID string) error {
	return v.repo.DeleteRecord(ctx, recordID)
}
