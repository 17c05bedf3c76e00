package vault

import (
	"context"

	"github.com/obscura-labs/obscura/common"
)

// Store is the persistent home of vault and permission records and of the
// native balances moved by the base ledger's transfer primitive.
type Store interface {
	// Begin starts a transaction. Mutating transactions on the same vault are
	// serialized by the store.
	Begin(ctx context.Context) (Tx, error)

	// Vault reads the committed record at `addr`.
	Vault(ctx context.Context, addr common.Address) (*VaultRecord, error)

	// Permissions lists the committed grants on the vault at `vault`.
	Permissions(ctx context.Context, vault common.Address) ([]*PermissionRecord, error)

	// Permission reads the committed grant at `addr`.
	Permission(ctx context.Context, addr common.Address) (*PermissionRecord, error)

	// NativeBalance returns the native asset held by the account at `addr`.
	// Unknown accounts hold zero.
	NativeBalance(ctx context.Context, addr common.Address) (uint64, error)

	// Name returns the name of the store.
	Name() string
}

// Tx is an all-or-nothing unit of work against a Store. Nothing written
// through a Tx is visible to others until Commit succeeds.
type Tx interface {
	// LockVault reads the record at `addr` and holds it exclusively until the
	// transaction ends. Returns ErrVaultNotFound if there is none.
	LockVault(ctx context.Context, addr common.Address) (*VaultRecord, error)

	// InsertVault allocates a new record. Returns ErrAccountInUse if the
	// address is taken.
	InsertVault(ctx context.Context, rec *VaultRecord) error

	// UpdateVault overwrites a record previously returned by LockVault.
	UpdateVault(ctx context.Context, rec *VaultRecord) error

	// InsertPermission allocates a new grant. Returns ErrAccountInUse if the
	// address is taken.
	InsertPermission(ctx context.Context, rec *PermissionRecord) error

	// TransferNative moves native asset between accounts. Returns
	// ErrInsufficientFunds if `from` cannot cover `amount`.
	TransferNative(ctx context.Context, from, to common.Address, amount uint64) error

	// MintNative credits native asset out of thin air. Only used by the dev faucet.
	MintNative(ctx context.Context, to common.Address, amount uint64) error

	Commit(ctx context.Context) error

	// Rollback discards the transaction. Calling it after Commit is a no-op.
	Rollback(ctx context.Context) error
}

// DelegateRequest asks the delegation service to take authority over a vault.
type DelegateRequest struct {
	// Owner pays for and controls the delegation.
	Owner common.PublicKey
	// Seeds are the address seeds of the delegated account.
	Seeds [][]byte
	// Validator is the fast-execution validator that receives authority.
	Validator common.PublicKey
	// Account is the state the validator starts from.
	Account Snapshot
}

// Snapshot is the encoded state of a vault pushed across the boundary.
type Snapshot struct {
	Address common.Address
	Data    []byte
}

// NewSnapshot encodes `rec`.
func NewSnapshot(rec *VaultRecord) (Snapshot, error) {
	data, err := rec.MarshalBinary()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Address: rec.Address(), Data: data}, nil
}

// DelegationService moves authority over vaults between the base ledger and
// the fast-execution layer. Every call is atomic: it either fully succeeds or
// fails without effect.
type DelegationService interface {
	// Delegate transfers authority to the fast-execution layer.
	Delegate(ctx context.Context, req *DelegateRequest) error
	// Commit checkpoints the delegated state to the base ledger, keeping the
	// delegation in place.
	Commit(ctx context.Context, snapshot Snapshot) error
	// CommitAndUndelegate checkpoints the state and returns authority to the
	// base ledger.
	CommitAndUndelegate(ctx context.Context, snapshot Snapshot) error
}

// EventSink receives events of committed operations.
type EventSink interface {
	Emit(ctx context.Context, ev *Event) error
}
