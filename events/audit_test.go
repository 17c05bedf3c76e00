package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/events"
	"github.com/obscura-labs/obscura/storage/postgres/testutil"
	"github.com/obscura-labs/obscura/vault"
)

func TestAuditSink(t *testing.T) {
	client := testutil.NewMigratedClient(t)
	ctx := context.Background()
	sink := events.NewAuditSink(client)
	anchors := vault.DefaultTrustAnchors()

	require.NoError(t, sink.Emit(ctx, &vault.Event{
		Kind:         vault.EventPrivateTransfer,
		Vault:        common.VaultAddress(1),
		VaultID:      1,
		Actor:        anchors.AccessControlProgram,
		Counterparty: anchors.DelegationProgram,
		Amount:       400,
		Balance:      600,
		Nonce:        1,
		Private:      true,
		Timestamp:    1_700_000_000,
	}))
	require.NoError(t, sink.Emit(ctx, &vault.Event{
		Kind:      vault.EventAirdrop,
		Actor:     anchors.AccessControlProgram,
		Amount:    1000,
		Timestamp: 1_700_000_001,
	}))

	addr := common.VaultAddress(1)
	var kind, counterparty, amount string
	err := client.QueryRow(ctx, `
		SELECT kind, counterparty, amount::text FROM events WHERE vault = $1
	`, addr[:]).Scan(&kind, &counterparty, &amount)
	require.NoError(t, err)
	require.Equal(t, "private_transfer", kind)
	require.Equal(t, anchors.DelegationProgram.String(), counterparty)
	require.Equal(t, "400", amount)

	var airdrops int
	require.NoError(t, client.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE vault IS NULL`).Scan(&airdrops))
	require.Equal(t, 1, airdrops)
}
