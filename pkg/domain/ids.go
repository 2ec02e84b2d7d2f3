// Package domain defines the identifier types shared by every module.
//
// Identifiers are strong types so the compiler rejects cross-type mixups
// (passing a ProposalID where an AccountID is expected). Parsing happens at
// trust boundaries; everything past the transport layer works with parsed
// values.
package domain

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	dErrors "covenant/pkg/domain-errors"
)

// AccountIDLength is the fixed byte width of an account identifier.
const AccountIDLength = 20

// AccountID is a fixed-width opaque account key. The zero value is the null
// identifier used as the issuance (mint) and destruction (burn) endpoint.
type AccountID [AccountIDLength]byte

// ZeroAccount is the null identifier.
var ZeroAccount AccountID

// IsZero reports whether the identifier is the null identifier.
func (a AccountID) IsZero() bool {
	return a == ZeroAccount
}

// String renders the identifier as 0x-prefixed lowercase hex.
func (a AccountID) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// ParseAccountID parses a 0x-prefixed hex account identifier. The null
// identifier parses successfully; callers that must reject it check IsZero.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return ZeroAccount, dErrors.New(dErrors.CodeInvalidInput, "account id cannot be empty")
	}
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return ZeroAccount, dErrors.Wrap(err, dErrors.CodeInvalidInput, "account id is not valid hex")
	}
	if len(b) != AccountIDLength {
		return ZeroAccount, dErrors.New(dErrors.CodeInvalidInput, "account id must be 20 bytes")
	}
	var id AccountID
	copy(id[:], b)
	return id, nil
}

// MustAccountID parses or panics. For fixtures and program constants.
func MustAccountID(s string) AccountID {
	id, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// MarshalJSON renders the identifier in its canonical string form.
func (a AccountID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses the canonical string form.
func (a *AccountID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ParseAccountID(s)
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// MarshalText implements encoding.TextMarshaler so AccountID works as a map
// key in JSON documents.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// ProposalID identifies a governance proposal. IDs are assigned
// monotonically starting at 1; zero means "no proposal".
type ProposalID uint64
