package vault

import (
	"context"

	"github.com/obscura-labs/obscura/common"
)

// EventKind names a committed operation.
type EventKind string

const (
	EventVaultCreated      EventKind = "vault_created"
	EventVaultDelegated    EventKind = "vault_delegated"
	EventVaultCommitted    EventKind = "vault_committed"
	EventVaultUndelegated  EventKind = "vault_undelegated"
	EventPrivateTransfer   EventKind = "private_transfer"
	EventDeposit           EventKind = "deposit"
	EventWithdraw          EventKind = "withdraw"
	EventPermissionGranted EventKind = "permission_granted"
	EventAirdrop           EventKind = "airdrop"
)

// Event describes an operation after it committed.
type Event struct {
	Kind    EventKind      `json:"kind"`
	Vault   common.Address `json:"vault"`
	VaultID uint64         `json:"vault_id"`
	// Actor is the identity that submitted the operation.
	Actor common.PublicKey `json:"actor"`
	// Counterparty is the transfer recipient, the delegate validator or the
	// permitted identity, depending on Kind.
	Counterparty common.PublicKey `json:"counterparty"`
	Amount       uint64           `json:"amount"`
	Balance      uint64           `json:"balance"`
	Nonce        uint64           `json:"nonce"`
	Private      bool             `json:"private"`
	Timestamp    int64            `json:"timestamp"`
}

// NopEventSink drops all events.
type NopEventSink struct{}

func (NopEventSink) Emit(_ context.Context, _ *Event) error { return nil }

// ConcernsVault is false for events that don't touch a vault record.
func (e *Event) ConcernsVault() bool {
	return e.Kind != EventAirdrop
}
