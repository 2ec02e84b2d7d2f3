package memory

import (
	"context"
	"math/big"
	"sync"

	"covenant/internal/ledger/models"
	dErrors "covenant/pkg/domain-errors"
	id "covenant/pkg/domain"
)

// Store is the in-memory ledger store. Used in development and as the test
// double for the postgres store; both implement the same contract.
type Store struct {
	mu          sync.RWMutex
	accounts    map[id.AccountID]*models.Account
	totalSupply *big.Int
	holderCount int
}

// New creates an empty in-memory ledger store.
func New() *Store {
	return &Store{
		accounts:    make(map[id.AccountID]*models.Account),
		totalSupply: new(big.Int),
	}
}

func (s *Store) Get(_ context.Context, account id.AccountID) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[account]
	if !ok {
		return models.Account{ID: account, Balance: new(big.Int)}, nil
	}
	return snapshot(acct), nil
}

func (s *Store) SetFlag(_ context.Context, account id.AccountID, flag models.Flag, value bool) error {
	if !flag.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown flag %q", flag)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreate(account)
	switch flag {
	case models.FlagKYCVerified:
		acct.KYCVerified = value
	case models.FlagBlacklisted:
		acct.Blacklisted = value
	case models.FlagSanctioned:
		acct.Sanctioned = value
	case models.FlagTransferLocked:
		acct.TransferLocked = value
	case models.FlagAuthorizedSender:
		acct.AuthorizedSender = value
	case models.FlagValidRecipient:
		acct.ValidRecipient = value
	}
	return nil
}

func (s *Store) SetRegionCode(_ context.Context, account id.AccountID, code int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(account).RegionCode = code
	return nil
}

func (s *Store) SetDailyLimit(_ context.Context, account id.AccountID, limit *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreate(account)
	if limit == nil {
		acct.DailyLimit = nil
		return nil
	}
	acct.DailyLimit = new(big.Int).Set(limit)
	return nil
}

func (s *Store) ApplyTransfer(_ context.Context, from, to id.AccountID, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.getOrCreate(from)
	if src.Balance.Cmp(amount) < 0 {
		return dErrors.New(dErrors.CodeInsufficientBalance, "transfer amount exceeds balance")
	}
	if from == to {
		return nil
	}

	dst := s.getOrCreate(to)
	dstWasEmpty := dst.Balance.Sign() == 0

	src.Balance.Sub(src.Balance, amount)
	dst.Balance.Add(dst.Balance, amount)

	if src.Balance.Sign() == 0 && amount.Sign() > 0 {
		s.holderCount--
	}
	if dstWasEmpty && amount.Sign() > 0 {
		s.holderCount++
	}
	return nil
}

func (s *Store) Mint(_ context.Context, to id.AccountID, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.getOrCreate(to)
	wasEmpty := dst.Balance.Sign() == 0

	dst.Balance.Add(dst.Balance, amount)
	s.totalSupply.Add(s.totalSupply, amount)

	if wasEmpty && amount.Sign() > 0 {
		s.holderCount++
	}
	return nil
}

func (s *Store) Burn(_ context.Context, from id.AccountID, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.getOrCreate(from)
	if src.Balance.Cmp(amount) < 0 {
		return dErrors.New(dErrors.CodeInsufficientBalance, "burn amount exceeds balance")
	}

	src.Balance.Sub(src.Balance, amount)
	s.totalSupply.Sub(s.totalSupply, amount)

	if src.Balance.Sign() == 0 && amount.Sign() > 0 {
		s.holderCount--
	}
	return nil
}

func (s *Store) TotalSupply(_ context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.totalSupply), nil
}

func (s *Store) HolderCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holderCount, nil
}

// getOrCreate must be called with the write lock held.
func (s *Store) getOrCreate(account id.AccountID) *models.Account {
	acct, ok := s.accounts[account]
	if !ok {
		acct = &models.Account{ID: account, Balance: new(big.Int)}
		s.accounts[account] = acct
	}
	return acct
}

func snapshot(acct *models.Account) models.Account {
	out := *acct
	out.Balance = new(big.Int).Set(acct.Balance)
	if acct.DailyLimit != nil {
		out.DailyLimit = new(big.Int).Set(acct.DailyLimit)
	}
	return out
}
