// Package store defines persistence for governance proposals and votes.
package store

import (
	"context"

	"covenant/internal/governance/models"
	id "covenant/pkg/domain"
)

// Store persists proposals and per-voter choices. Create assigns the next
// monotonic identifier. Get and Update fail with CodeProposalNotFound for
// unknown identifiers; vote bookkeeping (choice record plus tally bump)
// is a single store operation so the two can never diverge.
type Store interface {
	Create(ctx context.Context, proposal models.Proposal) (id.ProposalID, error)
	Get(ctx context.Context, proposalID id.ProposalID) (models.Proposal, error)
	Update(ctx context.Context, proposal models.Proposal) error

	RecordVote(ctx context.Context, proposalID id.ProposalID, voter id.AccountID, support bool) error
	HasVoted(ctx context.Context, proposalID id.ProposalID, voter id.AccountID) (bool, error)
	// VoteChoice returns the recorded choice; the boolean result is
	// meaningless when the voter has not voted, which HasVoted reports.
	VoteChoice(ctx context.Context, proposalID id.ProposalID, voter id.AccountID) (bool, error)
}
