//go:build integration

package capability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	platformpg "covenant/internal/platform/postgres"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

type PostgresRegistrySuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	registry  *PostgresRegistry
}

func TestPostgresRegistrySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRegistrySuite))
}

func (s *PostgresRegistrySuite) SetupSuite() {
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

	s.registry = NewPostgresRegistry(pool)
	s.Require().NoError(s.registry.Migrate(ctx))
}

func (s *PostgresRegistrySuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresRegistrySuite) SetupTest() {
	_, err := s.registry.pool.Exec(context.Background(), `TRUNCATE capabilities;`)
	s.Require().NoError(err)
}

func (s *PostgresRegistrySuite) TestGrantRevokeRoundTrip() {
	ctx := context.Background()
	acct := id.MustAccountID("0x0000000000000000000000000000000000000c01")

	has, err := s.registry.Has(ctx, Minter, acct)
	s.Require().NoError(err)
	s.False(has)

	s.Require().NoError(s.registry.Grant(ctx, Minter, acct))
	has, err = s.registry.Has(ctx, Minter, acct)
	s.Require().NoError(err)
	s.True(has)

	s.Require().NoError(s.registry.Revoke(ctx, Minter, acct))
	has, err = s.registry.Has(ctx, Minter, acct)
	s.Require().NoError(err)
	s.False(has)
}

func (s *PostgresRegistrySuite) TestGrantIsIdempotent() {
	ctx := context.Background()
	acct := id.MustAccountID("0x0000000000000000000000000000000000000c02")

	s.Require().NoError(s.registry.Grant(ctx, Governor, acct))
	s.Require().NoError(s.registry.Grant(ctx, Governor, acct))

	accounts, err := s.registry.Accounts(ctx, Governor)
	s.Require().NoError(err)
	s.Len(accounts, 1)
}

func (s *PostgresRegistrySuite) TestCapabilitiesAreIndependent() {
	ctx := context.Background()
	acct := id.MustAccountID("0x0000000000000000000000000000000000000c03")

	s.Require().NoError(s.registry.Grant(ctx, Pauser, acct))
	has, err := s.registry.Has(ctx, Administrator, acct)
	s.Require().NoError(err)
	s.False(has, "pauser grant must not imply any other capability")
}

func (s *PostgresRegistrySuite) TestRejectsNullIdentifierAndUnknownKind() {
	ctx := context.Background()

	err := s.registry.Grant(ctx, Minter, id.ZeroAccount)
	s.Equal(dErrors.CodeZeroAddressTarget, dErrors.CodeOf(err))

	err = s.registry.Grant(ctx, Kind("root"), id.MustAccountID("0x0000000000000000000000000000000000000c04"))
	s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func (s *PostgresRegistrySuite) TestAccountsListingIsSorted() {
	ctx := context.Background()
	b := id.MustAccountID("0x00000000000000000000000000000000000000b0")
	a := id.MustAccountID("0x00000000000000000000000000000000000000a0")

	s.Require().NoError(s.registry.Grant(ctx, Governor, b))
	s.Require().NoError(s.registry.Grant(ctx, Governor, a))

	accounts, err := s.registry.Accounts(ctx, Governor)
	s.Require().NoError(err)
	s.Require().Len(accounts, 2)
	s.Equal(a, accounts[0])
}
