package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/requestcontext"
)

func TestServiceAdministration(t *testing.T) {
	admin := id.MustAccountID("0x00000000000000000000000000000000000000ad")
	acct := id.MustAccountID("0x0000000000000000000000000000000000000001")

	newService := func(t *testing.T) (*Service, *MemoryRegistry, context.Context) {
		t.Helper()
		reg := NewMemoryRegistry()
		require.NoError(t, reg.Grant(context.Background(), Administrator, admin))
		svc, err := NewService(reg)
		require.NoError(t, err)
		return svc, reg, requestcontext.WithCallerID(context.Background(), admin)
	}

	t.Run("grant and revoke require administrator", func(t *testing.T) {
		svc, _, _ := newService(t)
		err := svc.Grant(requestcontext.WithCallerID(context.Background(), acct), Minter, acct)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCapabilityRequired))
	})

	t.Run("admin grants and revokes", func(t *testing.T) {
		svc, reg, ctx := newService(t)
		require.NoError(t, svc.Grant(ctx, Minter, acct))
		has, _ := reg.Has(ctx, Minter, acct)
		assert.True(t, has)

		require.NoError(t, svc.Revoke(ctx, Minter, acct))
		has, _ = reg.Has(ctx, Minter, acct)
		assert.False(t, has)
	})

	t.Run("governor membership is not mutable here", func(t *testing.T) {
		svc, reg, ctx := newService(t)
		sole := id.MustAccountID("0x00000000000000000000000000000000000000f1")
		require.NoError(t, reg.Grant(context.Background(), Governor, sole))

		err := svc.Revoke(ctx, Governor, sole)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeGovernorSetInvariant),
			"revoking a governor must go through governance, got %v", err)
		has, _ := reg.Has(ctx, Governor, sole)
		assert.True(t, has, "the governor set must be untouched")

		err = svc.Grant(ctx, Governor, acct)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeGovernorSetInvariant))
		has, _ = reg.Has(ctx, Governor, acct)
		assert.False(t, has)
	})

	t.Run("unknown kind rejected before auth", func(t *testing.T) {
		svc, _, _ := newService(t)
		err := svc.Revoke(context.Background(), Kind("root"), acct)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
