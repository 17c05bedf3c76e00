package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVaultAddress(t *testing.T) {
	require.True(t, VaultAddress(1).Equal(VaultAddress(1)))
	require.False(t, VaultAddress(1).Equal(VaultAddress(2)))

	var pk PublicKey
	pk[0] = 1
	require.False(t, VaultAddress(1).Equal(IdentityAddress(pk)))

	seeds := VaultSeeds(258)
	require.Len(t, seeds, 2)
	require.Equal(t, []byte("obscura_vault"), seeds[0])
	require.Equal(t, []byte{2, 1, 0, 0, 0, 0, 0, 0}, seeds[1])
}

func TestPermissionAddress(t *testing.T) {
	var a, b PublicKey
	a[0], b[0] = 1, 2

	require.True(t, PermissionAddress(VaultAddress(1), a).Equal(PermissionAddress(VaultAddress(1), a)))
	require.False(t, PermissionAddress(VaultAddress(1), a).Equal(PermissionAddress(VaultAddress(1), b)))
	require.False(t, PermissionAddress(VaultAddress(1), a).Equal(PermissionAddress(VaultAddress(2), a)))
}

func TestAddressEncoding(t *testing.T) {
	addr := VaultAddress(7)

	text, err := addr.MarshalText()
	require.NoError(t, err)
	require.Regexp(t, "^obscura1[a-z0-9]+$", string(text))
	require.Equal(t, string(text), addr.String())

	data, err := json.Marshal(addr)
	require.NoError(t, err)
	var decoded Address
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, addr.Equal(decoded))

	bin, err := addr.MarshalBinary()
	require.NoError(t, err)
	var fromBin Address
	require.NoError(t, fromBin.UnmarshalBinary(bin))
	require.True(t, addr.Equal(fromBin))

	require.Error(t, decoded.UnmarshalText([]byte("oasis1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq")))
}

func TestAddressInJSONDocument(t *testing.T) {
	type doc struct {
		Vault    Address `json:"vault"`
		Identity Address `json:"identity"`
	}
	var pk PublicKey
	pk[0] = 9
	in := doc{Vault: VaultAddress(42), Identity: IdentityAddress(pk)}

	data, err := json.Marshal(&in)
	require.NoError(t, err)
	require.Regexp(t, `^\{"vault":"obscura1[a-z0-9]+","identity":"obscura1[a-z0-9]+"\}$`, string(data))

	var out doc
	require.NoError(t, json.Unmarshal(data, &out))
	require.True(t, in.Vault.Equal(out.Vault))
	require.True(t, in.Identity.Equal(out.Identity))

	require.Error(t, json.Unmarshal([]byte(`{"vault":"obscura1notanaddress"}`), &out))
}
