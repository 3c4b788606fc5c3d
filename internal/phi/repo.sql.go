package phi

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyon-health/halcyon/internal/shared"
)

// PGRepository stores encrypted field blobs in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Put(ctx context.Context, recordID, field, blob string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO phi_fields (record_id, field, blob, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (record_id, field) DO UPDATE
		SET blob = EXCLUDED.blob, updated_at = NOW()`,
		recordID, field, blob)
	return err
}

func (r *PGRepository) Get(ctx context.Context, recordID, field string) (string, error) {
	var blob string
	err := r.pool.QueryRow(ctx, `
		SELECT blob FROM phi_fields WHERE record_id = $1 AND field = $2`,
		recordID, field).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return blob, nil
}

func (r *PGRepository) DeleteRecord(ctx context.Context, recordID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM phi_fields WHERE record_id = $1`, recordID)
	return err
}

var _ Repository = (*PGRepository)(nil)
