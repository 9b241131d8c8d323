// Package sequence produces a monotonically increasing team number from a
// single locked counter row, shared by every concurrent registration.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Allocator formats ids as "<Prefix>-<NNN>" (zero-padded to at least 3
// digits).
type Allocator struct {
	Prefix string
}

func New(prefix string) *Allocator {
	return &Allocator{Prefix: prefix}
}

// NextTeamID locks the singleton team_sequence row, advances it by one, and
// formats the new value as this allocator's team id. Must run inside tx;
// the lock is released on tx commit/abort.
func (a *Allocator) NextTeamID(ctx context.Context, tx pgx.Tx) (string, error) {
	var lastNumber int64
	err := tx.QueryRow(ctx, `SELECT last_number FROM team_sequence WHERE id = 1 FOR UPDATE`).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("sequence: lock row: %w", err)
	}

	next := lastNumber + 1
	if _, err := tx.Exec(ctx, `UPDATE team_sequence SET last_number = $1, updated_at = now() WHERE id = 1`, next); err != nil {
		return "", fmt.Errorf("sequence: advance: %w", err)
	}

	return a.Format(next), nil
}

// Format renders n as this allocator's team id, zero-padded to at least 3
// digits: "<PREFIX>-NNN".
func (a *Allocator) Format(n int64) string {
	return fmt.Sprintf("%s-%03d", a.Prefix, n)
}

// ParseSuffix extracts the numeric suffix of a team id produced by this
// allocator's prefix. Returns ok=false for ids that don't match.
func (a *Allocator) ParseSuffix(teamID string) (int64, bool) {
	prefix := a.Prefix + "-"
	if !strings.HasPrefix(teamID, prefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(teamID, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Reconcile runs once at process startup: it computes M, the maximum numeric
// suffix across all committed team ids, and raises team_sequence.last_number
// to at least M. It never decreases the counter, and creates the singleton
// row if it is missing.
func (a *Allocator) Reconcile(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `SELECT team_id FROM teams`)
	if err != nil {
		return fmt.Errorf("sequence: reconcile scan teams: %w", err)
	}
	defer rows.Close()

	var maxSuffix int64
	for rows.Next() {
		var teamID string
		if err := rows.Scan(&teamID); err != nil {
			return fmt.Errorf("sequence: reconcile scan row: %w", err)
		}
		if n, ok := a.ParseSuffix(teamID); ok && n > maxSuffix {
			maxSuffix = n
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sequence: reconcile rows: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sequence: reconcile begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx, `SELECT last_number FROM team_sequence WHERE id = 1 FOR UPDATE`).Scan(&current)
	switch {
	case err == pgx.ErrNoRows:
		start := maxSuffix
		if _, err := tx.Exec(ctx, `INSERT INTO team_sequence (id, last_number, updated_at) VALUES (1, $1, now())`, start); err != nil {
			return fmt.Errorf("sequence: reconcile insert: %w", err)
		}
	case err != nil:
		return fmt.Errorf("sequence: reconcile read: %w", err)
	default:
		if current < maxSuffix {
			if _, err := tx.Exec(ctx, `UPDATE team_sequence SET last_number = $1, updated_at = now() WHERE id = 1`, maxSuffix); err != nil {
				return fmt.Errorf("sequence: reconcile update: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}
