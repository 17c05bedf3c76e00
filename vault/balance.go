package vault

import (
	"context"
	"fmt"

	"github.com/obscura-labs/obscura/common"
)

// Deposit moves `amount` of native asset from the depositor's account into
// the vault and credits the vault balance.
//
// Deposits are not gated on delegation state. Whether the base ledger accepts
// a transfer into an account whose authority has moved is up to the native
// transfer primitive.
func (c *Controller) Deposit(ctx context.Context, depositor common.PublicKey, vaultID uint64, amount uint64) (*VaultRecord, error) {
	return c.update(ctx, "deposit", vaultID, func(ctx context.Context, tx Tx, rec *VaultRecord) (*Event, error) {
		balance, err := common.CheckedAdd(rec.Balance, amount)
		if err != nil {
			return nil, err
		}
		if err = tx.TransferNative(ctx, common.IdentityAddress(depositor), rec.Address(), amount); err != nil {
			return nil, fmt.Errorf("native transfer: %w", err)
		}
		rec.Balance = balance
		rec.LastActivity = c.now()
		return &Event{
			Kind:      EventDeposit,
			Vault:     rec.Address(),
			VaultID:   rec.VaultID,
			Actor:     depositor,
			Amount:    amount,
			Balance:   rec.Balance,
			Nonce:     rec.Nonce,
			Private:   rec.IsPrivate,
			Timestamp: rec.LastActivity,
		}, nil
	})
}

// Withdraw moves `amount` from the vault back to its owner. Only possible
// while the base ledger holds authority.
func (c *Controller) Withdraw(ctx context.Context, caller common.PublicKey, vaultID uint64, amount uint64) (*VaultRecord, error) {
	return c.update(ctx, "withdraw", vaultID, func(ctx context.Context, tx Tx, rec *VaultRecord) (*Event, error) {
		if rec.IsDelegated {
			return nil, ErrAccountDelegated
		}
		if !rec.IsOwner(caller) {
			return nil, ErrUnauthorized
		}
		if rec.Balance < amount {
			return nil, ErrInsufficientBalance
		}

		balance, err := common.CheckedSub(rec.Balance, amount)
		if err != nil {
			return nil, err
		}
		if err = tx.TransferNative(ctx, rec.Address(), common.IdentityAddress(rec.Owner), amount); err != nil {
			return nil, fmt.Errorf("native transfer: %w", err)
		}
		rec.Balance = balance
		rec.LastActivity = c.now()
		return &Event{
			Kind:      EventWithdraw,
			Vault:     rec.Address(),
			VaultID:   rec.VaultID,
			Actor:     caller,
			Amount:    amount,
			Balance:   rec.Balance,
			Nonce:     rec.Nonce,
			Timestamp: rec.LastActivity,
		}, nil
	})
}

// Airdrop mints native asset into the account of `recipient`. It stands in
// for a development network faucet and is never reachable in production
// configurations.
func (c *Controller) Airdrop(ctx context.Context, recipient common.PublicKey, amount uint64) (uint64, error) {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("airdrop: begin tx: %w", err)
	}
	defer c.rollback(ctx, tx)

	addr := common.IdentityAddress(recipient)
	if err = tx.MintNative(ctx, addr, amount); err != nil {
		return 0, fmt.Errorf("airdrop: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("airdrop: commit: %w", err)
	}
	c.emit(ctx, &Event{
		Kind:         EventAirdrop,
		Actor:        recipient,
		Counterparty: recipient,
		Amount:       amount,
		Timestamp:    c.now(),
	})
	return c.NativeBalance(ctx, recipient)
}

// NativeBalance returns the native asset held by the account of `owner`.
func (c *Controller) NativeBalance(ctx context.Context, owner common.PublicKey) (uint64, error) {
	return c.store.NativeBalance(ctx, common.IdentityAddress(owner))
}
