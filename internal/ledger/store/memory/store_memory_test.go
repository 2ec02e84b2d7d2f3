package memory

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/suite"

	"covenant/internal/ledger/models"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

var (
	acctA = id.MustAccountID("0x00000000000000000000000000000000000000aa")
	acctB = id.MustAccountID("0x00000000000000000000000000000000000000bb")
)

type LedgerStoreSuite struct {
	suite.Suite
	store *Store
}

func TestLedgerStoreSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreSuite))
}

func (s *LedgerStoreSuite) SetupTest() {
	s.store = New()
}

func (s *LedgerStoreSuite) TestGetUnknownAccount() {
	acct, err := s.store.Get(context.Background(), acctA)
	s.NoError(err)
	s.Equal(0, acct.Balance.Sign())
	s.False(acct.KYCVerified)
	s.Nil(acct.DailyLimit)
}

func (s *LedgerStoreSuite) TestMintMaintainsSupplyAndHolders() {
	ctx := context.Background()

	s.NoError(s.store.Mint(ctx, acctA, big.NewInt(100)))
	s.NoError(s.store.Mint(ctx, acctA, big.NewInt(50)))

	supply, err := s.store.TotalSupply(ctx)
	s.NoError(err)
	s.Equal(int64(150), supply.Int64())

	holders, err := s.store.HolderCount(ctx)
	s.NoError(err)
	s.Equal(1, holders, "second mint to the same account must not double count")
}

func (s *LedgerStoreSuite) TestBurnToZeroDropsHolder() {
	ctx := context.Background()
	s.NoError(s.store.Mint(ctx, acctA, big.NewInt(100)))

	s.NoError(s.store.Burn(ctx, acctA, big.NewInt(100)))

	holders, _ := s.store.HolderCount(ctx)
	s.Equal(0, holders)
	supply, _ := s.store.TotalSupply(ctx)
	s.Equal(0, supply.Sign())
}

func (s *LedgerStoreSuite) TestBurnBeyondBalance() {
	ctx := context.Background()
	s.NoError(s.store.Mint(ctx, acctA, big.NewInt(10)))

	err := s.store.Burn(ctx, acctA, big.NewInt(11))
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))

	acct, _ := s.store.Get(ctx, acctA)
	s.Equal(int64(10), acct.Balance.Int64(), "failed burn must not mutate")
}

func (s *LedgerStoreSuite) TestApplyTransferHolderAccounting() {
	ctx := context.Background()
	s.NoError(s.store.Mint(ctx, acctA, big.NewInt(100)))

	s.Run("partial move adds a holder", func() {
		s.NoError(s.store.ApplyTransfer(ctx, acctA, acctB, big.NewInt(40)))
		holders, _ := s.store.HolderCount(ctx)
		s.Equal(2, holders)
	})

	s.Run("emptying the sender removes a holder", func() {
		s.NoError(s.store.ApplyTransfer(ctx, acctA, acctB, big.NewInt(60)))
		holders, _ := s.store.HolderCount(ctx)
		s.Equal(1, holders)
	})

	s.Run("self transfer leaves state untouched", func() {
		before, _ := s.store.Get(ctx, acctB)
		s.NoError(s.store.ApplyTransfer(ctx, acctB, acctB, big.NewInt(5)))
		after, _ := s.store.Get(ctx, acctB)
		s.Equal(before.Balance, after.Balance)
		holders, _ := s.store.HolderCount(ctx)
		s.Equal(1, holders)
	})
}

func (s *LedgerStoreSuite) TestFlagOverwrites() {
	ctx := context.Background()

	s.NoError(s.store.SetFlag(ctx, acctA, models.FlagBlacklisted, true))
	acct, _ := s.store.Get(ctx, acctA)
	s.True(acct.Blacklisted)

	s.NoError(s.store.SetFlag(ctx, acctA, models.FlagBlacklisted, false))
	acct, _ = s.store.Get(ctx, acctA)
	s.False(acct.Blacklisted)

	err := s.store.SetFlag(ctx, acctA, models.Flag("bogus"), true)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *LedgerStoreSuite) TestDailyLimitSetAndClear() {
	ctx := context.Background()

	s.NoError(s.store.SetDailyLimit(ctx, acctA, big.NewInt(500)))
	acct, _ := s.store.Get(ctx, acctA)
	s.NotNil(acct.DailyLimit)
	s.Equal(int64(500), acct.DailyLimit.Int64())

	s.NoError(s.store.SetDailyLimit(ctx, acctA, nil))
	acct, _ = s.store.Get(ctx, acctA)
	s.Nil(acct.DailyLimit)
}

func (s *LedgerStoreSuite) TestSnapshotIsolation() {
	ctx := context.Background()
	s.NoError(s.store.Mint(ctx, acctA, big.NewInt(100)))

	acct, _ := s.store.Get(ctx, acctA)
	acct.Balance.SetInt64(0)

	again, _ := s.store.Get(ctx, acctA)
	s.Equal(int64(100), again.Balance.Int64(), "callers must not reach store internals")
}
