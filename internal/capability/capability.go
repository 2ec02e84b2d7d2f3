// Package capability implements role checks as named, revocable predicates
// over account identifiers. No hierarchy: each capability is an independent
// membership test, and Administrator is only special in that granting and
// revoking require it.
package capability

import (
	"context"

	id "covenant/pkg/domain"
)

// Kind names one capability.
type Kind string

const (
	Administrator Kind = "administrator"
	Governor      Kind = "governor"
	Compliance    Kind = "compliance"
	Minter        Kind = "minter"
	Burner        Kind = "burner"
	Pauser        Kind = "pauser"
)

// IsValid reports whether the kind is one of the supported capabilities.
func (k Kind) IsValid() bool {
	switch k {
	case Administrator, Governor, Compliance, Minter, Burner, Pauser:
		return true
	}
	return false
}

// Registry stores capability membership.
type Registry interface {
	Has(ctx context.Context, kind Kind, account id.AccountID) (bool, error)
	Grant(ctx context.Context, kind Kind, account id.AccountID) error
	Revoke(ctx context.Context, kind Kind, account id.AccountID) error
	Accounts(ctx context.Context, kind Kind) ([]id.AccountID, error)
}
