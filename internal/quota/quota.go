// Package quota enforces the per-church team cap under concurrent
// registration attempts.
package quota

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/text/unicode/norm"

	"github.com/icct/registration/internal/apierrors"
)

// Guard enforces MaxPerChurch active (non-rejected) teams per church.
type Guard struct {
	MaxPerChurch int
}

func New(maxPerChurch int) *Guard {
	return &Guard{MaxPerChurch: maxPerChurch}
}

// Normalize folds a church name to its comparison key: NFC-normalized,
// case-folded, whitespace-collapsed. Two names that a human would read as
// identical must map to the same key even if typed with different Unicode
// composition or casing.
func Normalize(churchName string) string {
	folded := strings.ToLower(strings.Join(strings.Fields(churchName), " "))
	return norm.NFC.String(folded)
}

// Check counts the church's active teams with the row locked against
// concurrent inserts, and fails closed if the cap is already met. Must run
// inside tx, before the new team row is inserted, so the count and the
// insert are atomic with respect to other registrations for the same church.
func (g *Guard) Check(ctx context.Context, tx pgx.Tx, churchName string) error {
	key := Normalize(churchName)

	// Advisory-free serialization: lock the matching rows FOR UPDATE so a
	// concurrent registration for the same church blocks here rather than
	// both observing count < cap and racing past it.
	rows, err := tx.Query(ctx, `
		SELECT id FROM teams
		WHERE church_key = $1 AND registration_status != 'rejected'
		FOR UPDATE`, key)
	if err != nil {
		return fmt.Errorf("quota: lock rows: %w", err)
	}
	count := 0
	for rows.Next() {
		count++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("quota: scan rows: %w", err)
	}
	rows.Close()

	if count >= g.MaxPerChurch {
		return apierrors.ErrChurchQuotaExceeded.WithMessage(
			fmt.Sprintf("church %q already has %d registered team(s)", churchName, count))
	}
	return nil
}
