// Package postgres persists the ledger in PostgreSQL. Balances are NUMERIC
// so arbitrary-precision amounts survive the round trip; values cross the
// driver boundary as decimal strings.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"covenant/internal/ledger/models"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// Store is the PostgreSQL ledger store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps a pgx pool. Call Migrate before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the ledger schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_accounts (
			id                TEXT PRIMARY KEY,
			balance           NUMERIC NOT NULL DEFAULT 0 CHECK (balance >= 0),
			kyc_verified      BOOLEAN NOT NULL DEFAULT FALSE,
			blacklisted       BOOLEAN NOT NULL DEFAULT FALSE,
			sanctioned        BOOLEAN NOT NULL DEFAULT FALSE,
			transfer_locked   BOOLEAN NOT NULL DEFAULT FALSE,
			authorized_sender BOOLEAN NOT NULL DEFAULT FALSE,
			valid_recipient   BOOLEAN NOT NULL DEFAULT FALSE,
			region_code       INTEGER NOT NULL DEFAULT 0,
			daily_limit       NUMERIC
		);
		CREATE TABLE IF NOT EXISTS ledger_meta (
			singleton    BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
			total_supply NUMERIC NOT NULL DEFAULT 0,
			holder_count INTEGER NOT NULL DEFAULT 0
		);
		INSERT INTO ledger_meta (singleton) VALUES (TRUE) ON CONFLICT DO NOTHING;
	`)
	if err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, account id.AccountID) (models.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT balance::text, kyc_verified, blacklisted, sanctioned,
		       transfer_locked, authorized_sender, valid_recipient,
		       region_code, daily_limit::text
		FROM ledger_accounts WHERE id = $1
	`, account.String())

	var (
		balance    string
		dailyLimit *string
		acct       = models.Account{ID: account}
	)
	err := row.Scan(&balance, &acct.KYCVerified, &acct.Blacklisted,
		&acct.Sanctioned, &acct.TransferLocked, &acct.AuthorizedSender,
		&acct.ValidRecipient, &acct.RegionCode, &dailyLimit)
	if errors.Is(err, pgx.ErrNoRows) {
		acct.Balance = new(big.Int)
		return acct, nil
	}
	if err != nil {
		return models.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}

	acct.Balance, err = parseNumeric(balance)
	if err != nil {
		return models.Account{}, err
	}
	if dailyLimit != nil {
		acct.DailyLimit, err = parseNumeric(*dailyLimit)
		if err != nil {
			return models.Account{}, err
		}
	}
	return acct, nil
}

func (s *Store) SetFlag(ctx context.Context, account id.AccountID, flag models.Flag, value bool) error {
	column, ok := flagColumns[flag]
	if !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown flag %q", flag)
	}
	// column comes from the fixed map above, never from input.
	query := fmt.Sprintf(`
		INSERT INTO ledger_accounts (id, %s) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET %s = EXCLUDED.%s
	`, column, column, column)
	if _, err := s.pool.Exec(ctx, query, account.String(), value); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set flag")
	}
	return nil
}

var flagColumns = map[models.Flag]string{
	models.FlagKYCVerified:      "kyc_verified",
	models.FlagBlacklisted:      "blacklisted",
	models.FlagSanctioned:       "sanctioned",
	models.FlagTransferLocked:   "transfer_locked",
	models.FlagAuthorizedSender: "authorized_sender",
	models.FlagValidRecipient:   "valid_recipient",
}

func (s *Store) SetRegionCode(ctx context.Context, account id.AccountID, code int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_accounts (id, region_code) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET region_code = EXCLUDED.region_code
	`, account.String(), code)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set region code")
	}
	return nil
}

func (s *Store) SetDailyLimit(ctx context.Context, account id.AccountID, limit *big.Int) error {
	var value *string
	if limit != nil {
		v := limit.String()
		value = &v
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_accounts (id, daily_limit) VALUES ($1, $2::numeric)
		ON CONFLICT (id) DO UPDATE SET daily_limit = EXCLUDED.daily_limit
	`, account.String(), value)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set daily limit")
	}
	return nil
}

func (s *Store) ApplyTransfer(ctx context.Context, from, to id.AccountID, amount *big.Int) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		fromBalance, err := lockBalance(ctx, tx, from)
		if err != nil {
			return err
		}
		if fromBalance.Cmp(amount) < 0 {
			return dErrors.New(dErrors.CodeInsufficientBalance, "transfer amount exceeds balance")
		}
		if from == to {
			return nil
		}

		toBalance, err := lockBalance(ctx, tx, to)
		if err != nil {
			return err
		}

		if err := addBalance(ctx, tx, from, new(big.Int).Neg(amount)); err != nil {
			return err
		}
		if err := addBalance(ctx, tx, to, amount); err != nil {
			return err
		}

		holderDelta := 0
		if amount.Sign() > 0 {
			if fromBalance.Cmp(amount) == 0 {
				holderDelta--
			}
			if toBalance.Sign() == 0 {
				holderDelta++
			}
		}
		return adjustMeta(ctx, tx, new(big.Int), holderDelta)
	})
}

func (s *Store) Mint(ctx context.Context, to id.AccountID, amount *big.Int) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		toBalance, err := lockBalance(ctx, tx, to)
		if err != nil {
			return err
		}
		if err := addBalance(ctx, tx, to, amount); err != nil {
			return err
		}
		holderDelta := 0
		if toBalance.Sign() == 0 && amount.Sign() > 0 {
			holderDelta++
		}
		return adjustMeta(ctx, tx, amount, holderDelta)
	})
}

func (s *Store) Burn(ctx context.Context, from id.AccountID, amount *big.Int) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		fromBalance, err := lockBalance(ctx, tx, from)
		if err != nil {
			return err
		}
		if fromBalance.Cmp(amount) < 0 {
			return dErrors.New(dErrors.CodeInsufficientBalance, "burn amount exceeds balance")
		}
		if err := addBalance(ctx, tx, from, new(big.Int).Neg(amount)); err != nil {
			return err
		}
		holderDelta := 0
		if fromBalance.Cmp(amount) == 0 && amount.Sign() > 0 {
			holderDelta--
		}
		return adjustMeta(ctx, tx, new(big.Int).Neg(amount), holderDelta)
	})
}

func (s *Store) TotalSupply(ctx context.Context) (*big.Int, error) {
	var supply string
	err := s.pool.QueryRow(ctx, `SELECT total_supply::text FROM ledger_meta`).Scan(&supply)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load total supply")
	}
	return parseNumeric(supply)
}

func (s *Store) HolderCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT holder_count FROM ledger_meta`).Scan(&count)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "load holder count")
	}
	return count, nil
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}

// lockBalance row-locks the account, creating it at zero balance first so
// unknown identifiers behave like empty accounts.
func lockBalance(ctx context.Context, tx pgx.Tx, account id.AccountID) (*big.Int, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_accounts (id) VALUES ($1) ON CONFLICT DO NOTHING
	`, account.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ensure account")
	}

	var balance string
	err = tx.QueryRow(ctx, `
		SELECT balance::text FROM ledger_accounts WHERE id = $1 FOR UPDATE
	`, account.String()).Scan(&balance)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lock account")
	}
	return parseNumeric(balance)
}

func addBalance(ctx context.Context, tx pgx.Tx, account id.AccountID, delta *big.Int) error {
	_, err := tx.Exec(ctx, `
		UPDATE ledger_accounts SET balance = balance + $2::numeric WHERE id = $1
	`, account.String(), delta.String())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update balance")
	}
	return nil
}

func adjustMeta(ctx context.Context, tx pgx.Tx, supplyDelta *big.Int, holderDelta int) error {
	_, err := tx.Exec(ctx, `
		UPDATE ledger_meta
		SET total_supply = total_supply + $1::numeric,
		    holder_count = holder_count + $2
	`, supplyDelta.String(), holderDelta)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update ledger meta")
	}
	return nil
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInternal, "malformed numeric %q", s)
	}
	return v, nil
}
