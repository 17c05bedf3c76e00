package vault_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/vault"
)

func TestCreatePermission(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 0)

	_, err := h.controller.CreatePermission(h.ctx, stranger, 1, stranger)
	require.ErrorIs(t, err, vault.ErrUnauthorized)
	perms, err := h.controller.Permissions(h.ctx, 1)
	require.NoError(t, err)
	require.Empty(t, perms, "no record is created on failure")

	perm, err := h.controller.CreatePermission(h.ctx, owner, 1, stranger)
	require.NoError(t, err)
	require.Equal(t, common.VaultAddress(1), perm.Vault)
	require.Equal(t, stranger, perm.Permitted)
	require.Equal(t, owner, perm.GrantedBy)
	require.Equal(t, common.PermissionAddress(common.VaultAddress(1), stranger), perm.Address())

	// Granting the same identity twice collides on the grant address.
	_, err = h.controller.CreatePermission(h.ctx, owner, 1, stranger)
	require.ErrorIs(t, err, vault.ErrAccountInUse)

	_, err = h.controller.CreatePermission(h.ctx, owner, 1, recipient)
	require.NoError(t, err)
	perms, err = h.controller.Permissions(h.ctx, 1)
	require.NoError(t, err)
	require.Len(t, perms, 2)
}

func TestCanRead(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 10)

	rec := h.vault(t, 1)
	for _, reader := range []common.PublicKey{owner, stranger, recipient} {
		ok, err := h.controller.CanRead(h.ctx, rec, reader)
		require.NoError(t, err)
		require.True(t, ok, "local vaults are public")
	}

	_, err := h.controller.DelegateVault(h.ctx, owner, 1, anchors.ConfidentialValidator)
	require.NoError(t, err)
	_, err = h.controller.CreatePermission(h.ctx, owner, 1, stranger)
	require.NoError(t, err)

	rec = h.vault(t, 1)
	for _, tc := range []struct {
		reader   common.PublicKey
		expected bool
	}{
		{owner, true},
		{stranger, true},
		{recipient, false},
	} {
		ok, err := h.controller.CanRead(h.ctx, rec, tc.reader)
		require.NoError(t, err)
		require.Equal(t, tc.expected, ok, "reader %s", tc.reader)
	}
}
