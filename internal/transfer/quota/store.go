// Package quota tracks per-account daily transfer volume. The daily window
// is the UTC calendar day; reset is lazy, a new day simply reads as zero and
// no background job ever runs.
package quota

import (
	"context"
	"math/big"
	"time"
)

// Store accumulates daily spend per account.
type Store interface {
	// Spent returns the cumulative volume for the day containing now.
	Spent(ctx context.Context, account string, now time.Time) (*big.Int, error)
	// Add records amount against the day containing now.
	Add(ctx context.Context, account string, amount *big.Int, now time.Time) error
}

// dayKey buckets a timestamp into its UTC calendar day.
func dayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
