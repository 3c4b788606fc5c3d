package mfa

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyon-health/halcyon/internal/crypto"
	"github.com/halcyon-health/halcyon/internal/platform/db"
)

// PGRepository persists MFA state in PostgreSQL. TOTP secrets are sealed with
// the "mfa-secret" engine before they touch the database; recovery codes are
// stored only as salted iterated hashes.
type PGRepository struct {
	pool   *pgxpool.Pool
	engine *crypto.Engine
}

// NewPGRepository constructs the repository. engine must be purpose-bound to
// "mfa-secret".
func NewPGRepository(pool *pgxpool.Pool, engine *crypto.Engine) *PGRepository {
	return &PGRepository{pool: pool, engine: engine}
}

func (r *PGRepository) SaveEnrollment(ctx context.Context, enrollment Enrollment) error {
	sealed, err := r.engine.Encrypt([]byte(enrollment.Secret), []byte("mfa/"+enrollment.UserID))
	if err != nil {
		return fmt.Errorf("mfa: seal secret: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO mfa_enrollments (user_id, secret, active, last_step, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET secret = EXCLUDED.secret, active = EXCLUDED.active,
		    last_step = EXCLUDED.last_step, created_at = EXCLUDED.created_at`,
		enrollment.UserID, sealed.Encode(), enrollment.Active, enrollment.LastStep, enrollment.CreatedAt)
	return err
}

func (r *PGRepository) GetEnrollment(ctx context.Context, userID string) (*Enrollment, error) {
	var enrollment Enrollment
	var sealed string
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, secret, active, last_step, created_at
		FROM mfa_enrollments WHERE user_id = $1`, userID).
		Scan(&enrollment.UserID, &sealed, &enrollment.Active, &enrollment.LastStep, &enrollment.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	value, err := crypto.DecodeValue(sealed)
	if err != nil {
		return nil, err
	}
	secret, err := r.engine.Decrypt(value, []byte("mfa/"+userID))
	if err != nil {
		return nil, fmt.Errorf("mfa: unseal secret: %w", err)
	}
	enrollment.Secret = string(secret)
	return &enrollment, nil
}

func (r *PGRepository) Activate(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE mfa_enrollments SET active = TRUE WHERE user_id = $1`, userID)
	return err
}

// MarkStep advances the replay watermark only forward, atomically.
func (r *PGRepository) MarkStep(ctx context.Context, userID string, step int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE mfa_enrollments SET last_step = $2
		WHERE user_id = $1 AND last_step < $2`, userID, step)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGRepository) ReplaceRecoveryCodes(ctx context.Context, userID string, codes []RecoveryCode) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM mfa_recovery_codes WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, code := range codes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO mfa_recovery_codes (id, user_id, salt, hash, iterations)
				VALUES ($1, $2, $3, $4, $5)`,
				code.ID, code.UserID, code.Salt, code.Hash, code.Iterations); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PGRepository) ListRecoveryCodes(ctx context.Context, userID string) ([]RecoveryCode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, salt, hash, iterations, consumed_at
		FROM mfa_recovery_codes WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []RecoveryCode
	for rows.Next() {
		var code RecoveryCode
		if err := rows.Scan(&code.ID, &code.UserID, &code.Salt, &code.Hash, &code.Iterations, &code.ConsumedAt); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// ConsumeRecoveryCode is an atomic test-and-set; a second attempt matches no
// row and reports false.
func (r *PGRepository) ConsumeRecoveryCode(ctx context.Context, codeID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE mfa_recovery_codes SET consumed_at = NOW()
		WHERE id = $1 AND consumed_at IS NULL`, codeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ Repository = (*PGRepository)(nil)
