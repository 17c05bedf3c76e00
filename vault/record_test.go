package vault

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscriminators(t *testing.T) {
	sum := sha256.Sum256([]byte("account:VaultState"))
	require.Equal(t, sum[:DiscriminatorSize], vaultDiscriminator[:])
	require.NotEqual(t, vaultDiscriminator, permissionDiscriminator)
}

func TestVaultRecordBinary(t *testing.T) {
	anchors := DefaultTrustAnchors()
	owner := anchors.AccessControlProgram

	rec := NewVaultRecord(owner, 7, 1_700_000_000)
	rec.Balance = 1234
	rec.Nonce = 3
	rec.setDelegation(anchors.ConfidentialValidator, anchors)
	require.NoError(t, rec.CheckInvariants(anchors))

	data, err := rec.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, vaultDiscriminator[:], data[:DiscriminatorSize])

	var decoded VaultRecord
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.True(t, rec.Equal(&decoded))

	// A permission record is not a vault record.
	perm := &PermissionRecord{Vault: rec.Address(), Permitted: owner, GrantedBy: owner}
	permData, err := perm.MarshalBinary()
	require.NoError(t, err)
	require.ErrorContains(t, decoded.UnmarshalBinary(permData), "discriminator mismatch")
	require.ErrorContains(t, decoded.UnmarshalBinary(data[:4]), "too short")
}

func TestStateTransitions(t *testing.T) {
	anchors := DefaultTrustAnchors()
	validator := anchors.AccessControlProgram
	rec := NewVaultRecord(validator, 1, 0)
	require.Equal(t, StateLocal, rec.State())
	require.False(t, rec.State().IsDelegated())

	rec.setDelegation(validator, anchors)
	require.Equal(t, StateDelegatedFast, rec.State())
	require.NoError(t, rec.CheckInvariants(anchors))

	rec.setDelegation(anchors.ConfidentialValidator, anchors)
	require.Equal(t, StateDelegatedPrivate, rec.State())
	require.True(t, rec.State().IsDelegated())

	rec.clearDelegation()
	require.Equal(t, StateLocal, rec.State())
	require.NoError(t, rec.CheckInvariants(anchors))

	rec.IsPrivate = true
	require.Error(t, rec.CheckInvariants(anchors))
}
