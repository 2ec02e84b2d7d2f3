package policy

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"covenant/internal/ledger/models"
	id "covenant/pkg/domain"
	"covenant/pkg/requestcontext"
)

var (
	acctA = id.MustAccountID("0x00000000000000000000000000000000000000aa")
	acctB = id.MustAccountID("0x00000000000000000000000000000000000000bb")
	acctC = id.MustAccountID("0x00000000000000000000000000000000000000cc")
)

// fakeView is a fixed ledger snapshot: rule tests poke exactly the state a
// rule consults and nothing else.
type fakeView struct {
	accounts    map[id.AccountID]models.Account
	holderCount int
	dailySpent  map[id.AccountID]*big.Int
}

func newFakeView() *fakeView {
	return &fakeView{
		accounts:   make(map[id.AccountID]models.Account),
		dailySpent: make(map[id.AccountID]*big.Int),
	}
}

func (v *fakeView) Account(_ context.Context, account id.AccountID) (models.Account, error) {
	if acct, ok := v.accounts[account]; ok {
		return acct, nil
	}
	return models.Account{ID: account, Balance: new(big.Int)}, nil
}

func (v *fakeView) HolderCount(_ context.Context) (int, error) {
	return v.holderCount, nil
}

func (v *fakeView) DailySpent(_ context.Context, account id.AccountID, _ time.Time) (*big.Int, error) {
	if spent, ok := v.dailySpent[account]; ok {
		return spent, nil
	}
	return new(big.Int), nil
}

type EngineSuite struct {
	suite.Suite
	view   *fakeView
	config *MemoryConfigStore
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.view = newFakeView()
	s.config = NewMemoryConfigStore()
	s.engine = NewEngine(s.view, s.config)
}

func (s *EngineSuite) setAccount(acct models.Account) {
	if acct.Balance == nil {
		acct.Balance = new(big.Int)
	}
	s.view.accounts[acct.ID] = acct
	if acct.Balance.Sign() > 0 {
		s.view.holderCount++
	}
}

func (s *EngineSuite) configure(fn func(*Configuration)) {
	_, err := s.config.Update(context.Background(), fn)
	s.Require().NoError(err)
}

func (s *EngineSuite) evaluate(from, to id.AccountID, amount int64) Code {
	code, err := s.engine.Evaluate(context.Background(), from, to, big.NewInt(amount))
	s.Require().NoError(err)
	return code
}

func (s *EngineSuite) TestAllowedByDefault() {
	s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
	s.Equal(CodeSuccess, s.evaluate(acctA, acctB, 100))
}

func (s *EngineSuite) TestEachRuleFires() {
	s.Run("sender blacklisted", func() {
		s.SetupTest()
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000), Blacklisted: true})
		s.Equal(CodeSenderBlacklisted, s.evaluate(acctA, acctB, 1))
	})

	s.Run("receiver blacklisted", func() {
		s.SetupTest()
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.setAccount(models.Account{ID: acctB, Blacklisted: true})
		s.Equal(CodeReceiverBlacklisted, s.evaluate(acctA, acctB, 1))
	})

	s.Run("sanctioned either side", func() {
		s.SetupTest()
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.setAccount(models.Account{ID: acctB, Sanctioned: true})
		s.Equal(CodeSanctioned, s.evaluate(acctA, acctB, 1))
	})

	s.Run("sender kyc", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.KYCRequired = true })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.Equal(CodeSenderKYCInvalid, s.evaluate(acctA, acctB, 1))
	})

	s.Run("recipient allow-list", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.RecipientValidationRequired = true })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.Equal(CodeInvalidRecipient, s.evaluate(acctA, acctB, 1))
	})

	s.Run("sender authorization list", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.TransferAuthorizationRequired = true })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.Equal(CodeUnauthorizedTransfer, s.evaluate(acctA, acctB, 1))
	})

	s.Run("region restriction", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) {
			c.RegionRestrictionsEnabled = true
			c.AllowedRegions[1] = true
		})
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000), RegionCode: 1})
		s.setAccount(models.Account{ID: acctB, RegionCode: 2})
		s.Equal(CodeRegionRestriction, s.evaluate(acctA, acctB, 1))
	})

	s.Run("transfer locked", func() {
		s.SetupTest()
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000), TransferLocked: true})
		s.Equal(CodeTransferLocked, s.evaluate(acctA, acctB, 1))
	})

	s.Run("insufficient balance", func() {
		s.SetupTest()
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(10)})
		s.Equal(CodeInsufficientBalance, s.evaluate(acctA, acctB, 11))
	})

	s.Run("paused", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.Paused = true })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.Equal(CodePaused, s.evaluate(acctA, acctB, 1))
	})

	s.Run("amount above max", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.MaxTransferAmount = big.NewInt(100) })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.Equal(CodeAmountOutOfRange, s.evaluate(acctA, acctB, 101))
	})

	s.Run("amount below min", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.MinTransferAmount = big.NewInt(10) })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.Equal(CodeAmountOutOfRange, s.evaluate(acctA, acctB, 9))
	})

	s.Run("holder limit", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.MaxHolderCount = 1 })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.Equal(CodeHolderLimitExceeded, s.evaluate(acctA, acctB, 1))
	})
}

// The first applicable rule wins: an account that is both blacklisted and
// sanctioned always reports blacklisted, and a hard violation is never
// masked by a later rule.
func (s *EngineSuite) TestPriorityDeterminism() {
	s.Run("blacklisted beats sanctioned", func() {
		s.SetupTest()
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000), Blacklisted: true, Sanctioned: true})
		s.Equal(CodeSenderBlacklisted, s.evaluate(acctA, acctB, 1))
	})

	s.Run("sanctions beat kyc", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.KYCRequired = true })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000), Sanctioned: true})
		s.Equal(CodeSanctioned, s.evaluate(acctA, acctB, 1))
	})

	s.Run("insufficient balance beats paused", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.Paused = true })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(10)})
		s.Equal(CodeInsufficientBalance, s.evaluate(acctA, acctB, 11))
	})

	s.Run("eligibility beats balance so counterparties learn nothing", func() {
		s.SetupTest()
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(10)})
		s.setAccount(models.Account{ID: acctB, Blacklisted: true})
		s.Equal(CodeReceiverBlacklisted, s.evaluate(acctA, acctB, 1_000_000))
	})
}

func (s *EngineSuite) TestMintAndBurnExemptions() {
	s.Run("mint skips all sender-side rules", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) {
			c.KYCRequired = true
			c.TransferAuthorizationRequired = true
			c.RegionRestrictionsEnabled = true
			c.MinTransferAmount = big.NewInt(100)
		})
		s.setAccount(models.Account{ID: acctB, KYCVerified: true, Balance: big.NewInt(5)})
		s.Equal(CodeSuccess, s.evaluate(id.ZeroAccount, acctB, 1))
	})

	s.Run("burn skips all recipient-side rules", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) {
			c.KYCRequired = true
			c.RecipientValidationRequired = true
			c.RegionRestrictionsEnabled = true
			c.MinTransferAmount = big.NewInt(100)
		})
		s.setAccount(models.Account{ID: acctA, KYCVerified: true, AuthorizedSender: true, Balance: big.NewInt(1000)})
		s.Equal(CodeSuccess, s.evaluate(acctA, id.ZeroAccount, 1))
	})

	s.Run("mint still honors max bound and pause", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.MaxTransferAmount = big.NewInt(100) })
		s.Equal(CodeAmountOutOfRange, s.evaluate(id.ZeroAccount, acctB, 101))

		s.SetupTest()
		s.configure(func(c *Configuration) { c.Paused = true })
		s.Equal(CodePaused, s.evaluate(id.ZeroAccount, acctB, 1))
	})

	s.Run("mint still honors holder limit", func() {
		s.SetupTest()
		s.configure(func(c *Configuration) { c.MaxHolderCount = 1 })
		s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})
		s.Equal(CodeHolderLimitExceeded, s.evaluate(id.ZeroAccount, acctB, 1))
	})
}

func (s *EngineSuite) TestDailyLimit() {
	limit := big.NewInt(500)
	s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(10_000), DailyLimit: limit})

	s.Run("within limit", func() {
		s.view.dailySpent[acctA] = big.NewInt(100)
		s.Equal(CodeSuccess, s.evaluate(acctA, acctB, 400))
	})

	s.Run("projected spend over limit", func() {
		s.view.dailySpent[acctA] = big.NewInt(100)
		s.Equal(CodeAmountOutOfRange, s.evaluate(acctA, acctB, 401))
	})

	s.Run("burn bypasses daily accounting", func() {
		s.view.dailySpent[acctA] = big.NewInt(500)
		s.Equal(CodeSuccess, s.evaluate(acctA, id.ZeroAccount, 400))
	})
}

// Scenario from the behavioral contract: verified, funded sender to an
// unverified recipient reports code 7 with its fixed message.
func (s *EngineSuite) TestRestrictedTransferScenario() {
	s.configure(func(c *Configuration) { c.KYCRequired = true })
	s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000), KYCVerified: true})
	s.setAccount(models.Account{ID: acctB})

	code := s.evaluate(acctA, acctB, 100)
	s.Equal(CodeReceiverKYCInvalid, code)
	s.Equal(Code(7), code)
	s.Equal("Receiver KYC not verified", Message(code))
}

func (s *EngineSuite) TestHolderLimitBoundaryScenario() {
	s.configure(func(c *Configuration) { c.MaxHolderCount = 1 })
	s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000)})

	s.Equal(Code(14), s.evaluate(acctA, acctB, 1))

	s.Run("existing holder as recipient is fine", func() {
		s.setAccount(models.Account{ID: acctC, Balance: big.NewInt(1)})
		s.configure(func(c *Configuration) { c.MaxHolderCount = 2 })
		s.Equal(CodeSuccess, s.evaluate(acctA, acctC, 1))
	})
}

func (s *EngineSuite) TestComplianceHeuristicScenario() {
	s.configure(func(c *Configuration) { c.MaxTransferAmount = big.NewInt(1_000_000) })
	s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1_000_000), KYCVerified: true})

	s.Run("large first-time transfer is flagged", func() {
		s.Equal(Code(13), s.evaluate(acctA, acctB, 800_000))
	})

	s.Run("exactly at threshold passes", func() {
		s.Equal(CodeSuccess, s.evaluate(acctA, acctB, 750_000))
	})

	s.Run("funded recipient passes", func() {
		s.setAccount(models.Account{ID: acctB, Balance: big.NewInt(1)})
		s.Equal(CodeSuccess, s.evaluate(acctA, acctB, 800_000))
	})

	s.Run("threshold is configurable", func() {
		s.configure(func(c *Configuration) { c.LargeTransferBps = 9000 })
		delete(s.view.accounts, acctB)
		s.Equal(CodeSuccess, s.evaluate(acctA, acctB, 800_000))
		s.Equal(Code(13), s.evaluate(acctA, acctB, 900_001))
	})
}

func (s *EngineSuite) TestIdempotentQuery() {
	s.configure(func(c *Configuration) { c.KYCRequired = true })
	s.setAccount(models.Account{ID: acctA, Balance: big.NewInt(1000), KYCVerified: true})

	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	first, err := s.engine.Evaluate(ctx, acctA, acctB, big.NewInt(100))
	s.Require().NoError(err)
	second, err := s.engine.Evaluate(ctx, acctA, acctB, big.NewInt(100))
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *EngineSuite) TestRejectsNegativeAmount() {
	_, err := s.engine.Evaluate(context.Background(), acctA, acctB, big.NewInt(-1))
	s.Error(err)
}

func TestMessageUnknownCode(t *testing.T) {
	if got := Message(Code(99)); got != "Unknown restriction code" {
		t.Fatalf("unexpected message %q", got)
	}
}
