// Package policy implements the transfer-restriction evaluation engine: a
// pure function mapping a proposed balance movement onto a single
// restriction code. Codes are the stable contract; message strings are
// diagnostic only.
package policy

// Code is the restriction code returned by the engine. Zero means allowed.
// The numbering is part of the public contract and must not be reused.
type Code uint8

const (
	CodeSuccess              Code = 0
	CodeSenderBlacklisted    Code = 2
	CodeReceiverBlacklisted  Code = 3
	CodeInsufficientBalance  Code = 4
	CodePaused               Code = 5
	CodeSenderKYCInvalid     Code = 6
	CodeReceiverKYCInvalid   Code = 7
	CodeAmountOutOfRange     Code = 8
	CodeSanctioned           Code = 9
	CodeUnauthorizedTransfer Code = 10
	CodeInvalidRecipient     Code = 11
	CodeTransferLocked       Code = 12
	CodeComplianceViolation  Code = 13
	CodeHolderLimitExceeded  Code = 14
	CodeRegionRestriction    Code = 15
)

var messages = map[Code]string{
	CodeSuccess:              "Transfer allowed",
	CodeSenderBlacklisted:    "Sender address is blacklisted",
	CodeReceiverBlacklisted:  "Receiver address is blacklisted",
	CodeInsufficientBalance:  "Insufficient balance",
	CodePaused:               "Transfers are paused",
	CodeSenderKYCInvalid:     "Sender KYC not verified",
	CodeReceiverKYCInvalid:   "Receiver KYC not verified",
	CodeAmountOutOfRange:     "Transfer amount out of allowed range",
	CodeSanctioned:           "Address is sanctioned",
	CodeUnauthorizedTransfer: "Sender is not an authorized transfer agent",
	CodeInvalidRecipient:     "Recipient is not an approved recipient",
	CodeTransferLocked:       "Account is locked for transfers",
	CodeComplianceViolation:  "Transfer flagged by compliance heuristics",
	CodeHolderLimitExceeded:  "Maximum holder count exceeded",
	CodeRegionRestriction:    "Region not permitted for transfers",
}

// Message returns the fixed human-readable string for a code. Unknown codes
// report as such rather than failing.
func Message(code Code) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown restriction code"
}

// Error is the structured policy denial surfaced by value-moving
// operations. It is never produced for CodeSuccess.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds the denial error for a non-success code.
func NewError(code Code) *Error {
	return &Error{Code: code, Message: Message(code)}
}
