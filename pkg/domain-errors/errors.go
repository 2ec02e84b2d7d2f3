// Package domainerrors provides structured errors with machine-readable
// codes. Callers branch on the code, never on message text; messages exist
// for logs and operator diagnostics.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for programmatic handling.
type Code string

const (
	// Transport-generic codes.
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal_error"

	// Ledger codes.
	CodeZeroAddressTarget   Code = "zero_address_target"
	CodeInsufficientBalance Code = "insufficient_balance"

	// Authorization codes.
	CodeCapabilityRequired Code = "capability_required"

	// Governance codes.
	CodeGovernorSetInvariant    Code = "governor_set_invariant"
	CodeQuorumInvariant         Code = "quorum_invariant"
	CodeProposalNotFound        Code = "proposal_not_found"
	CodeVotingClosed            Code = "voting_closed"
	CodeAlreadyVoted            Code = "already_voted"
	CodeNotEligibleForExecution Code = "not_eligible_for_execution"
	CodeAlreadyExecuted         Code = "already_executed"
	CodeAlreadyCancelled        Code = "already_cancelled"
	CodeEmptyDescription        Code = "empty_description"
	CodeExecutionDispatchFailed Code = "execution_dispatch_failed"
)

// Error is a domain error carrying a code, a message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a code and message.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from an error chain, or CodeInternal when the
// error carries no domain code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// MessageOf extracts the message from an error chain; empty when the error
// carries no domain code.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
