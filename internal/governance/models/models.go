// Package models defines the governance proposal shape and its state
// machine. State is never stored: it is derived from the proposal's
// timestamps, tallies, and terminal flags at read time, so there are no
// background transitions to schedule.
package models

import (
	"encoding/json"
	"math/big"
	"time"

	id "covenant/pkg/domain"
)

// State is the derived lifecycle position of a proposal.
type State string

const (
	StateActive    State = "active"
	StateQueued    State = "queued"
	StateExecuted  State = "executed"
	StateDefeated  State = "defeated"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
)

// Call is the privileged operation a proposal carries: the registered
// target component, the method on it, a method-specific JSON payload, and
// an optional amount for value-bearing methods.
type Call struct {
	Target string          `json:"target"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	Value  *big.Int        `json:"value,omitempty"`
}

// Proposal is one governance proposal. Timestamps are fixed at creation;
// eligibility windows are pure comparisons against them.
type Proposal struct {
	ID          id.ProposalID
	Proposer    id.AccountID
	Call        Call
	Description string

	CreatedAt      time.Time
	VotingDeadline time.Time
	// ETA is the execution-eligible time: VotingDeadline plus the
	// execution delay in force at creation.
	ETA time.Time

	ForVotes     int
	AgainstVotes int

	Executed  bool
	Cancelled bool
}

// Passed reports whether the vote outcome clears quorum: at least the
// required number of for-votes, and strictly more for than against.
func (p Proposal) Passed(requiredVotes int) bool {
	return p.ForVotes >= requiredVotes && p.ForVotes > p.AgainstVotes
}

// StateAt derives the proposal's state at the given instant. Expired is
// informational, not a dead end: an expired proposal met quorum and is
// still executable, it has simply sat past its eligibility point.
func (p Proposal) StateAt(now time.Time, requiredVotes int) State {
	switch {
	case p.Cancelled:
		return StateCancelled
	case p.Executed:
		return StateExecuted
	case !now.After(p.VotingDeadline):
		return StateActive
	case !p.Passed(requiredVotes):
		return StateDefeated
	case !now.After(p.ETA):
		return StateQueued
	default:
		return StateExpired
	}
}

// Executable reports whether Execute may dispatch at the given instant.
func (p Proposal) Executable(now time.Time, requiredVotes int) bool {
	return !p.Cancelled && !p.Executed && now.After(p.ETA) && p.Passed(requiredVotes)
}

// Clone deep-copies the proposal so store readers never alias stored state.
func (p Proposal) Clone() Proposal {
	out := p
	if p.Call.Value != nil {
		out.Call.Value = new(big.Int).Set(p.Call.Value)
	}
	if p.Call.Params != nil {
		out.Call.Params = append(json.RawMessage{}, p.Call.Params...)
	}
	return out
}
