// Package models defines the ledger's persisted account shape.
package models

import (
	"math/big"

	id "covenant/pkg/domain"
)

// Flag enumerates the per-account compliance flags. Each is an independent
// boolean the policy engine consults; mutations are total overwrites.
type Flag string

const (
	FlagKYCVerified      Flag = "kyc_verified"
	FlagBlacklisted      Flag = "blacklisted"
	FlagSanctioned       Flag = "sanctioned"
	FlagTransferLocked   Flag = "transfer_locked"
	FlagAuthorizedSender Flag = "authorized_sender"
	FlagValidRecipient   Flag = "valid_recipient"
)

// IsValid reports whether the flag is one of the supported kinds.
func (f Flag) IsValid() bool {
	switch f {
	case FlagKYCVerified, FlagBlacklisted, FlagSanctioned,
		FlagTransferLocked, FlagAuthorizedSender, FlagValidRecipient:
		return true
	}
	return false
}

// Account is the ledger's view of one account. The zero value (nil balance
// treated as 0, all flags false, no daily limit) is a valid, never-touched
// account: stores return it for unknown identifiers instead of a not-found
// error, matching the ledger semantics where every identifier exists with a
// zero balance.
type Account struct {
	ID               id.AccountID
	Balance          *big.Int
	KYCVerified      bool
	Blacklisted      bool
	Sanctioned       bool
	TransferLocked   bool
	AuthorizedSender bool
	ValidRecipient   bool
	RegionCode       int

	// DailyLimit bounds cumulative per-day transfer volume; nil means
	// unlimited. Spend accounting itself lives in the quota store.
	DailyLimit *big.Int
}

// EffectiveBalance returns the balance, normalizing nil to zero.
func (a Account) EffectiveBalance() *big.Int {
	if a.Balance == nil {
		return new(big.Int)
	}
	return a.Balance
}

// Flag reads one compliance flag by kind.
func (a Account) Flag(f Flag) bool {
	switch f {
	case FlagKYCVerified:
		return a.KYCVerified
	case FlagBlacklisted:
		return a.Blacklisted
	case FlagSanctioned:
		return a.Sanctioned
	case FlagTransferLocked:
		return a.TransferLocked
	case FlagAuthorizedSender:
		return a.AuthorizedSender
	case FlagValidRecipient:
		return a.ValidRecipient
	}
	return false
}
