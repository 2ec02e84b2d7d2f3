// Package memory is the in-process governance store. Unit-test backing and
// the default when no database is configured.
package memory

import (
	"context"
	"sync"

	"covenant/internal/governance/models"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

type Store struct {
	mu        sync.RWMutex
	nextID    id.ProposalID
	proposals map[id.ProposalID]models.Proposal
	votes     map[id.ProposalID]map[id.AccountID]bool
}

func New() *Store {
	return &Store{
		nextID:    1,
		proposals: make(map[id.ProposalID]models.Proposal),
		votes:     make(map[id.ProposalID]map[id.AccountID]bool),
	}
}

func (s *Store) Create(_ context.Context, proposal models.Proposal) (id.ProposalID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal.ID = s.nextID
	s.nextID++
	s.proposals[proposal.ID] = proposal.Clone()
	s.votes[proposal.ID] = make(map[id.AccountID]bool)
	return proposal.ID, nil
}

func (s *Store) Get(_ context.Context, proposalID id.ProposalID) (models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proposal, ok := s.proposals[proposalID]
	if !ok {
		return models.Proposal{}, dErrors.Newf(dErrors.CodeProposalNotFound, "proposal %d not found", proposalID)
	}
	return proposal.Clone(), nil
}

func (s *Store) Update(_ context.Context, proposal models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[proposal.ID]; !ok {
		return dErrors.Newf(dErrors.CodeProposalNotFound, "proposal %d not found", proposal.ID)
	}
	s.proposals[proposal.ID] = proposal.Clone()
	return nil
}

func (s *Store) RecordVote(_ context.Context, proposalID id.ProposalID, voter id.AccountID, support bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[proposalID]
	if !ok {
		return dErrors.Newf(dErrors.CodeProposalNotFound, "proposal %d not found", proposalID)
	}
	if _, voted := s.votes[proposalID][voter]; voted {
		return dErrors.New(dErrors.CodeAlreadyVoted, "caller already voted on this proposal")
	}

	s.votes[proposalID][voter] = support
	if support {
		proposal.ForVotes++
	} else {
		proposal.AgainstVotes++
	}
	s.proposals[proposalID] = proposal
	return nil
}

func (s *Store) HasVoted(_ context.Context, proposalID id.ProposalID, voter id.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.proposals[proposalID]; !ok {
		return false, dErrors.Newf(dErrors.CodeProposalNotFound, "proposal %d not found", proposalID)
	}
	_, voted := s.votes[proposalID][voter]
	return voted, nil
}

func (s *Store) VoteChoice(_ context.Context, proposalID id.ProposalID, voter id.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.proposals[proposalID]; !ok {
		return false, dErrors.Newf(dErrors.CodeProposalNotFound, "proposal %d not found", proposalID)
	}
	return s.votes[proposalID][voter], nil
}
