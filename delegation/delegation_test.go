package delegation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/vault"
)

func testRequest(t *testing.T) *vault.DelegateRequest {
	anchors := vault.DefaultTrustAnchors()
	owner := anchors.AccessControlProgram
	rec := vault.NewVaultRecord(owner, 5, 100)
	rec.IsDelegated = true
	rec.DelegateValidator = anchors.DelegationProgram

	snapshot, err := vault.NewSnapshot(rec)
	require.NoError(t, err)
	return &vault.DelegateRequest{
		Owner:     owner,
		Seeds:     common.VaultSeeds(5),
		Validator: anchors.DelegationProgram,
		Account:   snapshot,
	}
}

func TestCheckRequest(t *testing.T) {
	require.NoError(t, CheckRequest(testRequest(t)))

	req := testRequest(t)
	req.Validator = common.ZeroPublicKey
	require.ErrorIs(t, CheckRequest(req), ErrBadValidator)

	req = testRequest(t)
	req.Seeds = common.VaultSeeds(6)
	require.ErrorIs(t, CheckRequest(req), ErrBadSeeds)

	req = testRequest(t)
	req.Seeds = req.Seeds[:1]
	require.ErrorIs(t, CheckRequest(req), ErrBadSeeds)

	req = testRequest(t)
	req.Owner = vault.DefaultTrustAnchors().ConfidentialValidator
	require.ErrorContains(t, CheckRequest(req), "disagrees")

	req = testRequest(t)
	req.Account.Data = req.Account.Data[1:]
	require.ErrorContains(t, CheckRequest(req), "decoding snapshot")
}

func TestDecodeSnapshotAddress(t *testing.T) {
	req := testRequest(t)
	req.Account.Address = common.VaultAddress(6)
	_, err := DecodeSnapshot(req.Account)
	require.ErrorContains(t, err, "foreign address")
}
