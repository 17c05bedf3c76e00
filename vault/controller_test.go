package vault_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/vault"
)

func TestCreateVault(t *testing.T) {
	h := newHarness(t)

	rec, err := h.controller.CreateVault(h.ctx, owner, 1)
	require.NoError(t, err)
	require.Equal(t, owner, rec.Owner)
	require.EqualValues(t, 1, rec.VaultID)
	require.Zero(t, rec.Balance)
	require.Zero(t, rec.Nonce)
	require.False(t, rec.IsDelegated)
	require.False(t, rec.IsPrivate)
	require.True(t, rec.DelegateValidator.IsZero())
	require.Equal(t, rec.CreatedAt, rec.LastActivity)
	require.Equal(t, vault.StateLocal, rec.State())
	require.Equal(t, common.VaultAddress(1), rec.Address())

	_, err = h.controller.CreateVault(h.ctx, stranger, 1)
	require.ErrorIs(t, err, vault.ErrAccountInUse)
	require.Equal(t, owner, h.vault(t, 1).Owner, "owner never changes")
	require.Equal(t, []vault.EventKind{vault.EventVaultCreated}, h.sink.kinds())
}

func TestOperationsOnMissingVault(t *testing.T) {
	h := newHarness(t)

	_, err := h.controller.DelegateVault(h.ctx, owner, 42, plainValidator)
	require.ErrorIs(t, err, vault.ErrVaultNotFound)
	_, err = h.controller.Deposit(h.ctx, owner, 42, 1)
	require.ErrorIs(t, err, vault.ErrVaultNotFound)
	_, err = h.controller.CreatePermission(h.ctx, owner, 42, stranger)
	require.ErrorIs(t, err, vault.ErrVaultNotFound)
	_, err = h.controller.Permissions(h.ctx, 42)
	require.ErrorIs(t, err, vault.ErrVaultNotFound)
}

func TestPrivateVaultLifecycle(t *testing.T) {
	h := newHarness(t)

	_, err := h.controller.CreateVault(h.ctx, owner, 1)
	require.NoError(t, err)

	h.fund(owner, 1000)
	rec, err := h.controller.Deposit(h.ctx, owner, 1, 1000)
	require.NoError(t, err)
	require.EqualValues(t, 1000, rec.Balance)

	rec, err = h.controller.DelegateVault(h.ctx, owner, 1, anchors.ConfidentialValidator)
	require.NoError(t, err)
	require.True(t, rec.IsDelegated)
	require.True(t, rec.IsPrivate)
	require.Equal(t, vault.StateDelegatedPrivate, rec.State())
	require.Len(t, h.delegation.delegated, 1)
	req := h.delegation.delegated[0]
	require.Equal(t, owner, req.Owner)
	require.Equal(t, anchors.ConfidentialValidator, req.Validator)
	require.Equal(t, common.VaultSeeds(1), req.Seeds)

	// The snapshot handed over already carries the delegation flags.
	var handedOver vault.VaultRecord
	require.NoError(t, handedOver.UnmarshalBinary(req.Account.Data))
	require.True(t, handedOver.IsDelegated)
	require.True(t, handedOver.IsPrivate)

	rec, err = h.controller.PrivateTransfer(h.ctx, owner, 1, 400, recipient)
	require.NoError(t, err)
	require.EqualValues(t, 600, rec.Balance)
	require.EqualValues(t, 1, rec.Nonce)
	require.Equal(t, vault.StateLocal, rec.State())
	require.True(t, rec.DelegateValidator.IsZero())
	require.Len(t, h.delegation.undelegates, 1)

	rec, err = h.controller.Withdraw(h.ctx, owner, 1, 600)
	require.NoError(t, err)
	require.Zero(t, rec.Balance)

	nativeBalance, err := h.controller.NativeBalance(h.ctx, owner)
	require.NoError(t, err)
	require.EqualValues(t, 600, nativeBalance)

	require.Equal(t, []vault.EventKind{
		vault.EventVaultCreated,
		vault.EventDeposit,
		vault.EventVaultDelegated,
		vault.EventPrivateTransfer,
		vault.EventWithdraw,
	}, h.sink.kinds())
	transfer := h.sink.events[3]
	require.Equal(t, recipient, transfer.Counterparty, "recipient is recorded for audit")
	require.EqualValues(t, 400, transfer.Amount)
	require.True(t, transfer.Private)
}

func TestPrivateTransferInsufficientBalance(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 2, 0)

	rec, err := h.controller.DelegateVault(h.ctx, owner, 2, plainValidator)
	require.NoError(t, err)
	require.False(t, rec.IsPrivate)
	require.Equal(t, vault.StateDelegatedFast, rec.State())

	before := h.vault(t, 2)
	_, err = h.controller.PrivateTransfer(h.ctx, owner, 2, 1, recipient)
	require.ErrorIs(t, err, vault.ErrInsufficientBalance)
	after := h.vault(t, 2)
	require.True(t, before.Equal(after), "failed transfer leaves the record unchanged")
	require.Zero(t, after.Balance)
	require.Zero(t, after.Nonce)
	require.Empty(t, h.delegation.undelegates)
}

func TestPrivateTransferPreconditions(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 100)

	// Not delegated always fails NotDelegated, whoever asks.
	for _, caller := range []common.PublicKey{owner, stranger} {
		_, err := h.controller.PrivateTransfer(h.ctx, caller, 1, 1, recipient)
		require.ErrorIs(t, err, vault.ErrNotDelegated)
	}

	_, err := h.controller.DelegateVault(h.ctx, owner, 1, plainValidator)
	require.NoError(t, err)

	// Balance is checked before the caller.
	_, err = h.controller.PrivateTransfer(h.ctx, stranger, 1, 101, recipient)
	require.ErrorIs(t, err, vault.ErrInsufficientBalance)
	_, err = h.controller.PrivateTransfer(h.ctx, stranger, 1, 100, recipient)
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	rec := h.vault(t, 1)
	require.True(t, rec.IsDelegated)
	require.EqualValues(t, 100, rec.Balance)

	// Spending the whole balance is fine.
	rec, err = h.controller.PrivateTransfer(h.ctx, owner, 1, 100, recipient)
	require.NoError(t, err)
	require.Zero(t, rec.Balance)
}

func TestDelegateVault(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 0)

	_, err := h.controller.DelegateVault(h.ctx, stranger, 1, plainValidator)
	require.ErrorIs(t, err, vault.ErrUnauthorized)
	require.Empty(t, h.delegation.delegated)

	rec, err := h.controller.DelegateVault(h.ctx, owner, 1, plainValidator)
	require.NoError(t, err)
	require.Equal(t, plainValidator, rec.DelegateValidator)
	require.False(t, rec.IsPrivate)

	// Re-delegating an already delegated vault is not rejected.
	rec, err = h.controller.DelegateVault(h.ctx, owner, 1, anchors.ConfidentialValidator)
	require.NoError(t, err)
	require.True(t, rec.IsPrivate)
	require.Equal(t, anchors.ConfidentialValidator, rec.DelegateValidator)
	require.Len(t, h.delegation.delegated, 2)
}

func TestDelegationServiceFailureLeavesRecordUnchanged(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 50)
	before := h.vault(t, 1)

	h.delegation.failNextCall = errServiceDown
	_, err := h.controller.DelegateVault(h.ctx, owner, 1, anchors.ConfidentialValidator)
	require.ErrorIs(t, err, errServiceDown)
	require.True(t, before.Equal(h.vault(t, 1)))

	_, err = h.controller.DelegateVault(h.ctx, owner, 1, plainValidator)
	require.NoError(t, err)
	delegated := h.vault(t, 1)

	h.delegation.failNextCall = errServiceDown
	_, err = h.controller.PrivateTransfer(h.ctx, owner, 1, 10, recipient)
	require.ErrorIs(t, err, errServiceDown)
	require.True(t, delegated.Equal(h.vault(t, 1)), "no partial transfer when commit+undelegate fails")

	h.delegation.failNextCall = errServiceDown
	_, err = h.controller.UndelegateVault(h.ctx, owner, 1)
	require.ErrorIs(t, err, errServiceDown)
	require.True(t, delegated.Equal(h.vault(t, 1)))

	h.delegation.failNextCall = errServiceDown
	_, err = h.controller.CommitVaultState(h.ctx, owner, 1)
	require.ErrorIs(t, err, errServiceDown)
	require.True(t, delegated.Equal(h.vault(t, 1)))

	require.NotContains(t, h.sink.kinds(), vault.EventPrivateTransfer)
	require.NotContains(t, h.sink.kinds(), vault.EventVaultUndelegated)
}

func TestCommitVaultState(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 10)

	_, err := h.controller.CommitVaultState(h.ctx, owner, 1)
	require.ErrorIs(t, err, vault.ErrNotDelegated)

	delegated, err := h.controller.DelegateVault(h.ctx, owner, 1, anchors.ConfidentialValidator)
	require.NoError(t, err)

	rec, err := h.controller.CommitVaultState(h.ctx, owner, 1)
	require.NoError(t, err)
	require.Equal(t, vault.StateDelegatedPrivate, rec.State(), "commit keeps the delegation")
	require.Equal(t, delegated.Balance, rec.Balance)
	require.Equal(t, delegated.Nonce, rec.Nonce)
	require.Greater(t, rec.LastActivity, delegated.LastActivity)
	require.Len(t, h.delegation.commits, 1)
	require.Empty(t, h.delegation.undelegates)

	var committed vault.VaultRecord
	require.NoError(t, committed.UnmarshalBinary(h.delegation.commits[0].Data))
	require.True(t, rec.Equal(&committed))
	require.Equal(t, rec.Address(), h.delegation.commits[0].Address)
}

func TestUndelegateVaultResetsFlags(t *testing.T) {
	for _, validator := range []common.PublicKey{plainValidator, anchors.ConfidentialValidator} {
		h := newHarness(t)
		h.createFunded(t, 1, 10)

		_, err := h.controller.UndelegateVault(h.ctx, owner, 1)
		require.ErrorIs(t, err, vault.ErrNotDelegated)

		_, err = h.controller.DelegateVault(h.ctx, owner, 1, validator)
		require.NoError(t, err)

		rec, err := h.controller.UndelegateVault(h.ctx, owner, 1)
		require.NoError(t, err)
		require.False(t, rec.IsDelegated)
		require.False(t, rec.IsPrivate)
		require.True(t, rec.DelegateValidator.IsZero())
		require.EqualValues(t, 10, rec.Balance)
		require.Zero(t, rec.Nonce)
		require.Len(t, h.delegation.undelegates, 1)

		ev := h.sink.events[len(h.sink.events)-1]
		require.Equal(t, vault.EventVaultUndelegated, ev.Kind)
		require.Equal(t, validator, ev.Counterparty)
	}
}

func TestWithdraw(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 100)

	_, err := h.controller.Withdraw(h.ctx, stranger, 1, 1)
	require.ErrorIs(t, err, vault.ErrUnauthorized)
	_, err = h.controller.Withdraw(h.ctx, owner, 1, 101)
	require.ErrorIs(t, err, vault.ErrInsufficientBalance)

	rec, err := h.controller.Withdraw(h.ctx, owner, 1, 30)
	require.NoError(t, err)
	require.EqualValues(t, 70, rec.Balance)

	vaultNative, err := h.store.NativeBalance(h.ctx, common.VaultAddress(1))
	require.NoError(t, err)
	require.EqualValues(t, 70, vaultNative)
}

func TestWithdrawWhileDelegated(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 100)
	_, err := h.controller.DelegateVault(h.ctx, owner, 1, plainValidator)
	require.NoError(t, err)
	before := h.vault(t, 1)

	for _, caller := range []common.PublicKey{owner, stranger} {
		for _, amount := range []uint64{0, 1, 100, math.MaxUint64} {
			_, err = h.controller.Withdraw(h.ctx, caller, 1, amount)
			require.ErrorIs(t, err, vault.ErrAccountDelegated)
		}
	}
	require.True(t, before.Equal(h.vault(t, 1)))
}

func TestDeposit(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 0)

	// The depositor doesn't have to be the owner.
	h.fund(stranger, 5)
	_, err := h.controller.Deposit(h.ctx, stranger, 1, 6)
	require.ErrorIs(t, err, vault.ErrInsufficientFunds)
	require.Zero(t, h.vault(t, 1).Balance)

	rec, err := h.controller.Deposit(h.ctx, stranger, 1, 5)
	require.NoError(t, err)
	require.EqualValues(t, 5, rec.Balance)

	// Deposits are not gated on the delegation state.
	_, err = h.controller.DelegateVault(h.ctx, owner, 1, plainValidator)
	require.NoError(t, err)
	h.fund(owner, 10)
	rec, err = h.controller.Deposit(h.ctx, owner, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 15, rec.Balance)
	require.True(t, rec.IsDelegated)
}

func TestDepositOverflow(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, math.MaxUint64)
	h.fund(stranger, 1)

	_, err := h.controller.Deposit(h.ctx, stranger, 1, 1)
	require.ErrorIs(t, err, vault.ErrArithmeticOverflow)
	require.EqualValues(t, uint64(math.MaxUint64), h.vault(t, 1).Balance)

	native, err := h.controller.NativeBalance(h.ctx, stranger)
	require.NoError(t, err)
	require.EqualValues(t, 1, native, "native transfer rolled back with the operation")
}

func TestNonceOnlyMovesOnPrivateTransfer(t *testing.T) {
	h := newHarness(t)
	h.createFunded(t, 1, 100)

	expectNonce := func(n uint64) {
		require.Equal(t, n, h.vault(t, 1).Nonce)
	}

	h.fund(owner, 10)
	_, err := h.controller.Deposit(h.ctx, owner, 1, 10)
	require.NoError(t, err)
	_, err = h.controller.Withdraw(h.ctx, owner, 1, 5)
	require.NoError(t, err)
	_, err = h.controller.CreatePermission(h.ctx, owner, 1, stranger)
	require.NoError(t, err)
	expectNonce(0)

	for i := uint64(1); i <= 3; i++ {
		_, err = h.controller.DelegateVault(h.ctx, owner, 1, plainValidator)
		require.NoError(t, err)
		_, err = h.controller.CommitVaultState(h.ctx, owner, 1)
		require.NoError(t, err)
		expectNonce(i - 1)
		_, err = h.controller.PrivateTransfer(h.ctx, owner, 1, 1, recipient)
		require.NoError(t, err)
		expectNonce(i)
	}

	// Failed transfers don't move the nonce.
	_, err = h.controller.PrivateTransfer(h.ctx, owner, 1, 1, recipient)
	require.ErrorIs(t, err, vault.ErrNotDelegated)
	expectNonce(3)
}

func TestLastActivityAdvances(t *testing.T) {
	h := newHarness(t)
	rec, err := h.controller.CreateVault(h.ctx, owner, 1)
	require.NoError(t, err)
	created := rec.CreatedAt

	h.fund(owner, 1)
	rec, err = h.controller.Deposit(h.ctx, owner, 1, 1)
	require.NoError(t, err)
	require.Greater(t, rec.LastActivity, created)
	require.Equal(t, created, rec.CreatedAt)
}

func TestErrorCodes(t *testing.T) {
	for i, e := range []*vault.Error{
		vault.ErrNotDelegated,
		vault.ErrInsufficientBalance,
		vault.ErrUnauthorized,
		vault.ErrAccountDelegated,
		vault.ErrInvalidValidator,
		vault.ErrPermissionExists,
		vault.ErrNotPrivate,
	} {
		require.EqualValues(t, 6000+i, e.Code)
		found, ok := vault.ErrorByCode(e.Code)
		require.True(t, ok)
		require.Same(t, e, found)
		require.True(t, vault.IsPreconditionFailure(e))
	}
	_, ok := vault.ErrorByCode(42)
	require.False(t, ok)
	require.False(t, vault.IsPreconditionFailure(vault.ErrVaultNotFound))
}
