package capability

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// PostgresRegistry persists capability membership so grants survive
// restarts alongside the durable ledger and governance stores.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry wraps a pgx pool. Call Migrate before first use.
func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

// Migrate creates the capability schema if it does not exist.
func (r *PostgresRegistry) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS capabilities (
			kind    TEXT NOT NULL,
			account TEXT NOT NULL,
			PRIMARY KEY (kind, account)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate capability schema: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Has(ctx context.Context, kind Kind, account id.AccountID) (bool, error) {
	var has bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM capabilities WHERE kind = $1 AND account = $2)
	`, string(kind), account.String()).Scan(&has)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "check capability")
	}
	return has, nil
}

func (r *PostgresRegistry) Grant(ctx context.Context, kind Kind, account id.AccountID) error {
	if !kind.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown capability %q", kind)
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddressTarget, "cannot grant to the null identifier")
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO capabilities (kind, account) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, string(kind), account.String())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "grant capability")
	}
	return nil
}

func (r *PostgresRegistry) Revoke(ctx context.Context, kind Kind, account id.AccountID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM capabilities WHERE kind = $1 AND account = $2
	`, string(kind), account.String())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke capability")
	}
	return nil
}

func (r *PostgresRegistry) Accounts(ctx context.Context, kind Kind) ([]id.AccountID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT account FROM capabilities WHERE kind = $1 ORDER BY account
	`, string(kind))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list capability accounts")
	}
	defer rows.Close()

	out := make([]id.AccountID, 0, 8)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan capability account")
		}
		account, err := id.ParseAccountID(raw)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "malformed account")
		}
		out = append(out, account)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list capability accounts")
	}
	return out, nil
}
