//go:build integration

package quota

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covenant/pkg/testutil/containers"
)

func TestRedisStoreWindowing(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := NewRedisStore(rc.Client)
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("empty account reads zero", func(t *testing.T) {
		spent, err := store.Spent(ctx, "acct", day1)
		require.NoError(t, err)
		assert.Zero(t, spent.Sign())
	})

	t.Run("accumulates within a day", func(t *testing.T) {
		require.NoError(t, store.Add(ctx, "acct", big.NewInt(100), day1))
		require.NoError(t, store.Add(ctx, "acct", big.NewInt(50), day1.Add(5*time.Hour)))

		spent, err := store.Spent(ctx, "acct", day1.Add(13*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(150), spent.Int64())
	})

	t.Run("next day reads zero", func(t *testing.T) {
		spent, err := store.Spent(ctx, "acct", day1.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Zero(t, spent.Sign())
	})

	t.Run("handles amounts past int64", func(t *testing.T) {
		huge, ok := new(big.Int).SetString("340282366920938463463374607431768211456", 10)
		require.True(t, ok)
		require.NoError(t, store.Add(ctx, "whale", huge, day1))
		require.NoError(t, store.Add(ctx, "whale", big.NewInt(1), day1))

		spent, err := store.Spent(ctx, "whale", day1)
		require.NoError(t, err)
		assert.Equal(t, new(big.Int).Add(huge, big.NewInt(1)), spent)
	})

	t.Run("accounts are independent", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, store.Add(ctx, "a", big.NewInt(9), day1))

		spent, err := store.Spent(ctx, "b", day1)
		require.NoError(t, err)
		assert.Zero(t, spent.Sign())
	})
}
