package transfer

import (
	"context"
	"math/big"
	"time"

	"covenant/internal/ledger/models"
	"covenant/internal/ledger/store"
	"covenant/internal/transfer/quota"
	id "covenant/pkg/domain"
)

// View adapts the ledger store and the quota store into the policy engine's
// read-only window.
type View struct {
	ledger store.Store
	quota  quota.Store
}

// NewView builds the engine view.
func NewView(ledger store.Store, quotaStore quota.Store) *View {
	return &View{ledger: ledger, quota: quotaStore}
}

func (v *View) Account(ctx context.Context, account id.AccountID) (models.Account, error) {
	return v.ledger.Get(ctx, account)
}

func (v *View) HolderCount(ctx context.Context) (int, error) {
	return v.ledger.HolderCount(ctx)
}

func (v *View) DailySpent(ctx context.Context, account id.AccountID, now time.Time) (*big.Int, error) {
	return v.quota.Spent(ctx, account.String(), now)
}
