// Package store defines the ledger persistence contract.
package store

import (
	"context"
	"math/big"

	"covenant/internal/ledger/models"
	id "covenant/pkg/domain"
)

// Store persists account balances, flags, total supply, and holder count.
//
// Balance-moving operations (ApplyTransfer, Mint, Burn) are atomic: either
// the full movement plus supply and holder-count adjustment lands, or
// nothing does. They perform only arithmetic guards (no negative balances);
// policy evaluation happens before any of them is called.
type Store interface {
	// Get returns the account for the identifier. Unknown identifiers
	// return a zero-balance account, never an error.
	Get(ctx context.Context, account id.AccountID) (models.Account, error)

	// SetFlag overwrites one compliance flag.
	SetFlag(ctx context.Context, account id.AccountID, flag models.Flag, value bool) error

	// SetRegionCode overwrites the account's region code.
	SetRegionCode(ctx context.Context, account id.AccountID, code int) error

	// SetDailyLimit overwrites the account's daily transfer limit;
	// nil clears it (unlimited).
	SetDailyLimit(ctx context.Context, account id.AccountID, limit *big.Int) error

	// ApplyTransfer moves amount between two non-null accounts, keeping
	// the holder count consistent (decrement when from empties, increment
	// when to was empty, no double counting when from == to).
	ApplyTransfer(ctx context.Context, from, to id.AccountID, amount *big.Int) error

	// Mint credits a non-null account and grows total supply.
	Mint(ctx context.Context, to id.AccountID, amount *big.Int) error

	// Burn debits a non-null account and shrinks total supply. Fails with
	// insufficient_balance when amount exceeds the balance.
	Burn(ctx context.Context, from id.AccountID, amount *big.Int) error

	TotalSupply(ctx context.Context) (*big.Int, error)
	HolderCount(ctx context.Context) (int, error)
}
