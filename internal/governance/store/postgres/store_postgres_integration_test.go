//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"covenant/internal/governance/models"
	platformpg "covenant/internal/platform/postgres"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

var (
	proposer = id.MustAccountID("0x0000000000000000000000000000000000000a01")
	voter    = id.MustAccountID("0x0000000000000000000000000000000000000a02")
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	store     *Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("covenant_test"),
		tcpostgres.WithUsername("covenant"),
		tcpostgres.WithPassword("covenant"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(time.Minute)),
	)
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := platformpg.Connect(ctx, url)
	s.Require().NoError(err)

	s.store = New(pool)
	s.Require().NoError(s.store.Migrate(ctx))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.store.pool.Exec(context.Background(), `
		TRUNCATE governance_votes, governance_proposals RESTART IDENTITY;
	`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) proposal() models.Proposal {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.Proposal{
		Proposer: proposer,
		Call: models.Call{
			Target: "ledger",
			Method: "mint",
			Params: json.RawMessage(`{"to":"0x0000000000000000000000000000000000000b01"}`),
			Value:  big.NewInt(1_000_000),
		},
		Description:    "mint 1M to treasury",
		CreatedAt:      created,
		VotingDeadline: created.Add(24 * time.Hour),
		ETA:            created.Add(25 * time.Hour),
	}
}

func (s *PostgresStoreSuite) TestProposalRoundTrip() {
	ctx := context.Background()

	pid, err := s.store.Create(ctx, s.proposal())
	s.Require().NoError(err)
	s.Equal(id.ProposalID(1), pid)

	stored, err := s.store.Get(ctx, pid)
	s.Require().NoError(err)
	s.Equal(proposer, stored.Proposer)
	s.Equal("ledger", stored.Call.Target)
	s.Equal("mint", stored.Call.Method)
	s.Equal("1000000", stored.Call.Value.String())
	s.Equal("mint 1M to treasury", stored.Description)
	s.True(stored.VotingDeadline.Equal(stored.CreatedAt.Add(24 * time.Hour)))
	s.False(stored.Executed)
}

func (s *PostgresStoreSuite) TestGetUnknownProposal() {
	_, err := s.store.Get(context.Background(), 42)
	s.Equal(dErrors.CodeProposalNotFound, dErrors.CodeOf(err))
}

func (s *PostgresStoreSuite) TestVoteBookkeeping() {
	ctx := context.Background()

	pid, err := s.store.Create(ctx, s.proposal())
	s.Require().NoError(err)

	s.Require().NoError(s.store.RecordVote(ctx, pid, proposer, true))
	s.Require().NoError(s.store.RecordVote(ctx, pid, voter, false))

	err = s.store.RecordVote(ctx, pid, proposer, false)
	s.Equal(dErrors.CodeAlreadyVoted, dErrors.CodeOf(err))

	stored, err := s.store.Get(ctx, pid)
	s.Require().NoError(err)
	s.Equal(1, stored.ForVotes)
	s.Equal(1, stored.AgainstVotes)

	voted, err := s.store.HasVoted(ctx, pid, proposer)
	s.Require().NoError(err)
	s.True(voted)

	choice, err := s.store.VoteChoice(ctx, pid, proposer)
	s.Require().NoError(err)
	s.True(choice)
}

func (s *PostgresStoreSuite) TestTerminalFlagsSurviveRestartShapedReads() {
	ctx := context.Background()

	pid, err := s.store.Create(ctx, s.proposal())
	s.Require().NoError(err)

	stored, err := s.store.Get(ctx, pid)
	s.Require().NoError(err)
	stored.Executed = true
	s.Require().NoError(s.store.Update(ctx, stored))

	reread, err := s.store.Get(ctx, pid)
	s.Require().NoError(err)
	s.True(reread.Executed)
}

func (s *PostgresStoreSuite) TestNilValueProposal() {
	ctx := context.Background()

	p := s.proposal()
	p.Call.Value = nil
	pid, err := s.store.Create(ctx, p)
	s.Require().NoError(err)

	stored, err := s.store.Get(ctx, pid)
	s.Require().NoError(err)
	s.Nil(stored.Call.Value)
}
