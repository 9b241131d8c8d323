// Package idempotency deduplicates submissions by caller-supplied
// fingerprint, backed by a single Postgres table acting as process-wide
// shared state.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/icct/registration/internal/apierrors"
)

// Outcome is the result of Begin.
type Outcome int

const (
	New Outcome = iota
	DuplicateInFlight
	Completed
	Conflict
)

// BeginResult carries the outcome and, when Completed, the cached response.
type BeginResult struct {
	Outcome      Outcome
	ResponseBody json.RawMessage
}

// Store is the IdempotencyStore implementation.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl}
}

// Begin atomically claims key in state in_flight. On collision it inspects
// the existing row: a hash mismatch is Conflict, an in-flight row is
// DuplicateInFlight, a completed row returns its cached body. Expired rows
// are treated as absent and overwritten.
func (s *Store) Begin(ctx context.Context, key, payloadHash string) (BeginResult, error) {
	if key == "" {
		return BeginResult{Outcome: New}, nil
	}

	expiresAt := time.Now().Add(s.ttl)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency (key, payload_hash, status, created_at, expires_at)
		VALUES ($1, $2, 'in_flight', now(), $3)`, key, payloadHash, expiresAt)
	if err == nil {
		return BeginResult{Outcome: New}, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return BeginResult{}, fmt.Errorf("idempotency: begin insert: %w", err)
	}

	var storedHash, status string
	var body json.RawMessage
	var recordExpiresAt time.Time
	err = s.pool.QueryRow(ctx, `
		SELECT payload_hash, status, response_body, expires_at FROM idempotency WHERE key = $1`, key).
		Scan(&storedHash, &status, &body, &recordExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Raced with an expiry sweep between the failed insert and this read;
		// safe to treat as a fresh key on the caller's retry.
		return BeginResult{}, apierrors.ErrIdempotencyConflict.WithMessage("idempotency key contention, retry")
	}
	if err != nil {
		return BeginResult{}, fmt.Errorf("idempotency: begin read: %w", err)
	}

	if time.Now().After(recordExpiresAt) {
		if _, err := s.pool.Exec(ctx, `
			UPDATE idempotency SET payload_hash = $1, status = 'in_flight', response_body = NULL, created_at = now(), expires_at = $2
			WHERE key = $3`, payloadHash, time.Now().Add(s.ttl), key); err != nil {
			return BeginResult{}, fmt.Errorf("idempotency: begin reclaim expired: %w", err)
		}
		return BeginResult{Outcome: New}, nil
	}

	if storedHash != payloadHash {
		return BeginResult{Outcome: Conflict}, nil
	}
	if status == "in_flight" {
		return BeginResult{Outcome: DuplicateInFlight}, nil
	}
	return BeginResult{Outcome: Completed, ResponseBody: body}, nil
}

// Complete transitions key from in_flight to completed and stores body.
func (s *Store) Complete(ctx context.Context, key string, body json.RawMessage) error {
	if key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE idempotency SET status = 'completed', response_body = $1 WHERE key = $2`, body, key)
	if err != nil {
		return fmt.Errorf("idempotency: complete: %w", err)
	}
	return nil
}

// Abort deletes key's record, releasing it for retry.
func (s *Store) Abort(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("idempotency: abort: %w", err)
	}
	return nil
}

// Sweep removes expired records. Intended to run periodically from a
// background ticker.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("idempotency: sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}
