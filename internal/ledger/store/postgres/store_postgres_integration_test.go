//go:build integration

package postgres

import (
	"context"
	"math/big"
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

var (
	acctA = id.MustAccountID("0x00000000000000000000000000000000000000aa")
	acctB = id.MustAccountID("0x00000000000000000000000000000000000000bb")
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
		TRUNCATE ledger_accounts;
		UPDATE ledger_meta SET total_supply = 0, holder_count = 0;
	`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestMintTransferBurnRoundTrip() {
	ctx := context.Background()

	s.Require().NoError(s.store.Mint(ctx, acctA, big.NewInt(1000)))
	s.Require().NoError(s.store.ApplyTransfer(ctx, acctA, acctB, big.NewInt(400)))
	s.Require().NoError(s.store.Burn(ctx, acctB, big.NewInt(150)))

	a, err := s.store.Get(ctx, acctA)
	s.Require().NoError(err)
	s.Equal(int64(600), a.Balance.Int64())

	b, err := s.store.Get(ctx, acctB)
	s.Require().NoError(err)
	s.Equal(int64(250), b.Balance.Int64())

	supply, err := s.store.TotalSupply(ctx)
	s.Require().NoError(err)
	s.Equal(int64(850), supply.Int64())

	holders, err := s.store.HolderCount(ctx)
	s.Require().NoError(err)
	s.Equal(2, holders)
}

func (s *PostgresStoreSuite) TestHolderCountOnEmptying() {
	ctx := context.Background()

	s.Require().NoError(s.store.Mint(ctx, acctA, big.NewInt(10)))
	s.Require().NoError(s.store.ApplyTransfer(ctx, acctA, acctB, big.NewInt(10)))

	holders, err := s.store.HolderCount(ctx)
	s.Require().NoError(err)
	s.Equal(1, holders)
}

func (s *PostgresStoreSuite) TestBurnBeyondBalanceRollsBack() {
	ctx := context.Background()
	s.Require().NoError(s.store.Mint(ctx, acctA, big.NewInt(10)))

	err := s.store.Burn(ctx, acctA, big.NewInt(11))
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))

	a, err := s.store.Get(ctx, acctA)
	s.Require().NoError(err)
	s.Equal(int64(10), a.Balance.Int64())

	supply, err := s.store.TotalSupply(ctx)
	s.Require().NoError(err)
	s.Equal(int64(10), supply.Int64())
}

func (s *PostgresStoreSuite) TestLargeAmountsSurviveNumeric() {
	ctx := context.Background()

	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	s.Require().True(ok)

	s.Require().NoError(s.store.Mint(ctx, acctA, huge))

	a, err := s.store.Get(ctx, acctA)
	s.Require().NoError(err)
	s.Zero(a.Balance.Cmp(huge))
}

func (s *PostgresStoreSuite) TestFlagAndLimitPersistence() {
	ctx := context.Background()

	s.Require().NoError(s.store.SetFlag(ctx, acctA, "kyc_verified", true))
	s.Require().NoError(s.store.SetRegionCode(ctx, acctA, 44))
	s.Require().NoError(s.store.SetDailyLimit(ctx, acctA, big.NewInt(5000)))

	a, err := s.store.Get(ctx, acctA)
	s.Require().NoError(err)
	s.True(a.KYCVerified)
	s.Equal(44, a.RegionCode)
	s.Equal(int64(5000), a.DailyLimit.Int64())

	s.Require().NoError(s.store.SetDailyLimit(ctx, acctA, nil))
	a, err = s.store.Get(ctx, acctA)
	s.Require().NoError(err)
	s.Nil(a.DailyLimit)
}
