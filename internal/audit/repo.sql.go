package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyon-health/halcyon/internal/shared"
)

const uniqueViolation = "23505"

// PGRepository persists audit chains in PostgreSQL. The audit_entries table
// carries a unique index on (chain, seq); an insert losing the race for the
// next sequence number violates it and surfaces as ErrStaleTail, which the
// service retries against the fresh tail. Rows are never updated or deleted
// by application code.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository over the pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// AppendEntry inserts the entry, relying on the (chain, seq) uniqueness for
// the optimistic tail check.
func (r *PGRepository) AppendEntry(ctx context.Context, entry Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("audit: marshal details: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_entries (id, chain, seq, at, actor_id, event_type, action, resource_type, resource_id, details, previous_hash, entry_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.Chain, entry.Seq, entry.At, entry.ActorID, entry.EventType,
		entry.Action, entry.ResourceType, entry.ResourceID, details, entry.PrevHash, entry.EntryHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrStaleTail
		}
		return err
	}
	return nil
}

// Tail returns the highest-sequence entry of the chain.
func (r *PGRepository) Tail(ctx context.Context, chain string) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, chain, seq, at, actor_id, event_type, action, resource_type, resource_id, details, previous_hash, entry_hash
		FROM audit_entries WHERE chain = $1 ORDER BY seq DESC LIMIT 1`, chain)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// List returns entries in sequence order, applying the filter.
func (r *PGRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, chain, seq, at, actor_id, event_type, action, resource_type, resource_id, details, previous_hash, entry_hash
		FROM audit_entries
		WHERE chain = $1
		  AND ($2::timestamptz IS NULL OR at >= $2)
		  AND ($3::timestamptz IS NULL OR at <= $3)
		  AND ($4::text IS NULL OR actor_id = $4)
		ORDER BY seq ASC`
	args := []any{filter.Chain, nullableTime(filter.From), nullableTime(filter.To), nullableText(filter.Actor)}
	if filter.Limit > 0 {
		query += ` LIMIT $5`
		args = append(args, filter.Limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var entry Entry
	var details []byte
	if err := row.Scan(&entry.ID, &entry.Chain, &entry.Seq, &entry.At, &entry.ActorID,
		&entry.EventType, &entry.Action, &entry.ResourceType, &entry.ResourceID,
		&details, &entry.PrevHash, &entry.EntryHash); err != nil {
		return Entry{}, err
	}
	entry.At = entry.At.UTC()
	if len(details) > 0 && string(details) != "null" {
		if err := json.Unmarshal(details, &entry.Details); err != nil {
			return Entry{}, fmt.Errorf("audit: unmarshal details: %w", err)
		}
	}
	return entry, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repository = (*PGRepository)(nil)
