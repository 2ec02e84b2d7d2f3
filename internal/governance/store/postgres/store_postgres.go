// Package postgres persists governance proposals in PostgreSQL. Call
// payloads are stored as JSONB and amounts as NUMERIC text so proposals
// survive restarts byte-for-byte.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"covenant/internal/governance/models"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// Store is the PostgreSQL governance store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps a pgx pool. Call Migrate before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the governance schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS governance_proposals (
			id              BIGSERIAL PRIMARY KEY,
			proposer        TEXT NOT NULL,
			call_target     TEXT NOT NULL,
			call_method     TEXT NOT NULL,
			call_params     JSONB,
			call_value      NUMERIC,
			description     TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL,
			voting_deadline TIMESTAMPTZ NOT NULL,
			eta             TIMESTAMPTZ NOT NULL,
			for_votes       INTEGER NOT NULL DEFAULT 0,
			against_votes   INTEGER NOT NULL DEFAULT 0,
			executed        BOOLEAN NOT NULL DEFAULT FALSE,
			cancelled       BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE TABLE IF NOT EXISTS governance_votes (
			proposal_id BIGINT NOT NULL REFERENCES governance_proposals (id),
			voter       TEXT NOT NULL,
			support     BOOLEAN NOT NULL,
			PRIMARY KEY (proposal_id, voter)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate governance schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, proposal models.Proposal) (id.ProposalID, error) {
	var value *string
	if proposal.Call.Value != nil {
		v := proposal.Call.Value.String()
		value = &v
	}

	var assigned uint64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO governance_proposals (
			proposer, call_target, call_method, call_params, call_value,
			description, created_at, voting_deadline, eta
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
		RETURNING id
	`, proposal.Proposer.String(), proposal.Call.Target, proposal.Call.Method,
		proposal.Call.Params, value, proposal.Description,
		proposal.CreatedAt, proposal.VotingDeadline, proposal.ETA).Scan(&assigned)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "create proposal")
	}
	return id.ProposalID(assigned), nil
}

func (s *Store) Get(ctx context.Context, proposalID id.ProposalID) (models.Proposal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT proposer, call_target, call_method, call_params, call_value::text,
		       description, created_at, voting_deadline, eta,
		       for_votes, against_votes, executed, cancelled
		FROM governance_proposals WHERE id = $1
	`, uint64(proposalID))

	var (
		proposer string
		value    *string
		proposal = models.Proposal{ID: proposalID}
	)
	err := row.Scan(&proposer, &proposal.Call.Target, &proposal.Call.Method,
		&proposal.Call.Params, &value, &proposal.Description,
		&proposal.CreatedAt, &proposal.VotingDeadline, &proposal.ETA,
		&proposal.ForVotes, &proposal.AgainstVotes,
		&proposal.Executed, &proposal.Cancelled)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Proposal{}, dErrors.Newf(dErrors.CodeProposalNotFound, "proposal %d not found", proposalID)
	}
	if err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "load proposal")
	}

	proposal.Proposer, err = id.ParseAccountID(proposer)
	if err != nil {
		return models.Proposal{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed proposer")
	}
	if value != nil {
		v, ok := new(big.Int).SetString(*value, 10)
		if !ok {
			return models.Proposal{}, dErrors.Newf(dErrors.CodeInternal, "malformed numeric %q", *value)
		}
		proposal.Call.Value = v
	}
	proposal.CreatedAt = proposal.CreatedAt.UTC()
	proposal.VotingDeadline = proposal.VotingDeadline.UTC()
	proposal.ETA = proposal.ETA.UTC()
	return proposal, nil
}

func (s *Store) Update(ctx context.Context, proposal models.Proposal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE governance_proposals
		SET executed = $2, cancelled = $3
		WHERE id = $1
	`, uint64(proposal.ID), proposal.Executed, proposal.Cancelled)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update proposal")
	}
	if tag.RowsAffected() == 0 {
		return dErrors.Newf(dErrors.CodeProposalNotFound, "proposal %d not found", proposal.ID)
	}
	return nil
}

func (s *Store) RecordVote(ctx context.Context, proposalID id.ProposalID, voter id.AccountID, support bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM governance_proposals WHERE id = $1 FOR UPDATE)
	`, uint64(proposalID)).Scan(&exists)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "lock proposal")
	}
	if !exists {
		return dErrors.Newf(dErrors.CodeProposalNotFound, "proposal %d not found", proposalID)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO governance_votes (proposal_id, voter, support)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING
	`, uint64(proposalID), voter.String(), support)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record vote")
	}
	if tag.RowsAffected() == 0 {
		return dErrors.New(dErrors.CodeAlreadyVoted, "caller already voted on this proposal")
	}

	column := "against_votes"
	if support {
		column = "for_votes"
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE governance_proposals SET %s = %s + 1 WHERE id = $1
	`, column, column), uint64(proposalID))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "bump tally")
	}

	if err := tx.Commit(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}

func (s *Store) HasVoted(ctx context.Context, proposalID id.ProposalID, voter id.AccountID) (bool, error) {
	if _, err := s.Get(ctx, proposalID); err != nil {
		return false, err
	}
	var voted bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM governance_votes WHERE proposal_id = $1 AND voter = $2)
	`, uint64(proposalID), voter.String()).Scan(&voted)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "check vote")
	}
	return voted, nil
}

func (s *Store) VoteChoice(ctx context.Context, proposalID id.ProposalID, voter id.AccountID) (bool, error) {
	if _, err := s.Get(ctx, proposalID); err != nil {
		return false, err
	}
	var support bool
	err := s.pool.QueryRow(ctx, `
		SELECT support FROM governance_votes WHERE proposal_id = $1 AND voter = $2
	`, uint64(proposalID), voter.String()).Scan(&support)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "load vote")
	}
	return support, nil
}
