package breakglass

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists break-glass requests and grants in PostgreSQL.
// Grants are never deleted; expiry and revocation only change how they
// evaluate.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) SaveRequest(ctx context.Context, request Request) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO break_glass_requests (id, principal_id, justification, status, requested_at, audit_entry_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		request.ID, request.PrincipalID, request.Justification, request.Status,
		request.RequestedAt, request.AuditEntryID)
	return err
}

func (r *PGRepository) GetRequest(ctx context.Context, id string) (*Request, error) {
	var request Request
	err := r.pool.QueryRow(ctx, `
		SELECT id, principal_id, justification, status, requested_at, audit_entry_id
		FROM break_glass_requests WHERE id = $1`, id).
		Scan(&request.ID, &request.PrincipalID, &request.Justification,
			&request.Status, &request.RequestedAt, &request.AuditEntryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *PGRepository) MarkRequestGranted(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE break_glass_requests SET status = $2 WHERE id = $1`, id, StatusGranted)
	return err
}

func (r *PGRepository) SaveGrant(ctx context.Context, grant Grant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO break_glass_grants
			(id, request_id, principal_id, approver_id, self_approved, permissions, justification, issued_at, expires_at, audit_entry_id, swept)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE)`,
		grant.ID, grant.RequestID, grant.PrincipalID, grant.ApproverID, grant.SelfApproved,
		grant.Permissions, grant.Justification, grant.IssuedAt, grant.ExpiresAt, grant.AuditEntryID)
	return err
}

func (r *PGRepository) GetGrant(ctx context.Context, id string) (*Grant, error) {
	row := r.pool.QueryRow(ctx, grantQuery+` WHERE id = $1`, id)
	return scanGrant(row)
}

func (r *PGRepository) LatestGrant(ctx context.Context, principalID string) (*Grant, error) {
	row := r.pool.QueryRow(ctx, grantQuery+`
		WHERE principal_id = $1 AND revoked_at IS NULL
		ORDER BY issued_at DESC LIMIT 1`, principalID)
	return scanGrant(row)
}

func (r *PGRepository) Revoke(ctx context.Context, grantID string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE break_glass_grants SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`, grantID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGRepository) ListLapsed(ctx context.Context, now time.Time) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, grantQuery+`
		WHERE revoked_at IS NULL AND swept = FALSE AND expires_at <= $1
		ORDER BY issued_at ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *grant)
	}
	return grants, rows.Err()
}

func (r *PGRepository) MarkSwept(ctx context.Context, grantID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE break_glass_grants SET swept = TRUE WHERE id = $1`, grantID)
	return err
}

const grantQuery = `
	SELECT id, request_id, principal_id, approver_id, self_approved, permissions, justification, issued_at, expires_at, revoked_at, audit_entry_id, swept
	FROM break_glass_grants`

func scanGrant(row pgx.Row) (*Grant, error) {
	var grant Grant
	err := row.Scan(&grant.ID, &grant.RequestID, &grant.PrincipalID, &grant.ApproverID,
		&grant.SelfApproved, &grant.Permissions, &grant.Justification,
		&grant.IssuedAt, &grant.ExpiresAt, &grant.RevokedAt, &grant.AuditEntryID, &grant.Swept)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}

var _ Repository = (*PGRepository)(nil)
