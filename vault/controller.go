// Package vault implements the vault delegation state machine and the
// balance and permission operations that run against it.
//
// A vault starts Local: the base ledger holds authority and mutates it
// directly. Delegating hands authority to a fast-execution validator
// (DelegatedFast), or to the confidential-execution validator
// (DelegatedPrivate). Committing checkpoints delegated state back to the base
// ledger; undelegating, or a private transfer, commits and returns authority.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/log"
)

const moduleName = "vault"

// Controller executes vault operations. Every operation is a single
// transaction: preconditions are checked first, mutations are applied to a
// copy of the record, and the copy is only persisted once every external call
// has succeeded.
type Controller struct {
	store      Store
	delegation DelegationService
	events     EventSink
	anchors    TrustAnchors
	now        func() int64
	logger     *log.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithEventSink sets where events of committed operations go.
func WithEventSink(sink EventSink) Option {
	return func(c *Controller) {
		c.events = sink
	}
}

// WithClock overrides the ledger clock (unix seconds).
func WithClock(now func() int64) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates a controller over `store`.
func NewController(store Store, delegation DelegationService, anchors TrustAnchors, logger *log.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		delegation: delegation,
		events:     NopEventSink{},
		anchors:    anchors,
		now:        func() int64 { return time.Now().Unix() },
		logger:     logger.WithModule(moduleName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Anchors returns the trust anchors the controller was configured with.
func (c *Controller) Anchors() TrustAnchors {
	return c.anchors
}

// StoreName returns the name of the backing store.
func (c *Controller) StoreName() string {
	return c.store.Name()
}

// mutation runs against a locked copy of a vault record and describes the
// committed operation. Returning an error aborts the transaction.
type mutation func(ctx context.Context, tx Tx, rec *VaultRecord) (*Event, error)

// update applies `fn` to the vault with the given id inside one transaction.
func (c *Controller) update(ctx context.Context, op string, vaultID uint64, fn mutation) (*VaultRecord, error) {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer c.rollback(ctx, tx)

	current, err := tx.LockVault(ctx, common.VaultAddress(vaultID))
	if err != nil {
		return nil, fmt.Errorf("%s vault %d: %w", op, vaultID, err)
	}
	next := current.Clone()
	ev, err := fn(ctx, tx, next)
	if err != nil {
		return nil, fmt.Errorf("%s vault %d: %w", op, vaultID, err)
	}
	if err = tx.UpdateVault(ctx, next); err != nil {
		return nil, fmt.Errorf("%s vault %d: update: %w", op, vaultID, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s vault %d: commit: %w", op, vaultID, err)
	}
	c.emit(ctx, ev)
	return next, nil
}

func (c *Controller) rollback(ctx context.Context, tx Tx) {
	if err := tx.Rollback(ctx); err != nil {
		c.logger.Warn("failed to roll back tx", "err", err)
	}
}

// emit hands an event to the sink. The operation has already committed, so
// a failing sink is only logged.
func (c *Controller) emit(ctx context.Context, ev *Event) {
	if ev == nil {
		return
	}
	if err := c.events.Emit(ctx, ev); err != nil {
		c.logger.Error("failed to emit event", "kind", ev.Kind, "vault_id", ev.VaultID, "err", err)
	}
}

// CreateVault allocates a new Local vault owned by `caller`.
func (c *Controller) CreateVault(ctx context.Context, caller common.PublicKey, vaultID uint64) (*VaultRecord, error) {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create_vault: begin tx: %w", err)
	}
	defer c.rollback(ctx, tx)

	rec := NewVaultRecord(caller, vaultID, c.now())
	if err = tx.InsertVault(ctx, rec); err != nil {
		return nil, fmt.Errorf("create_vault vault %d: %w", vaultID, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create_vault vault %d: commit: %w", vaultID, err)
	}
	c.emit(ctx, &Event{
		Kind:      EventVaultCreated,
		Vault:     rec.Address(),
		VaultID:   vaultID,
		Actor:     caller,
		Timestamp: rec.CreatedAt,
	})
	return rec, nil
}

// DelegateVault hands authority over the vault to `validator`.
//
// The record is marked delegated before the hand-off, because afterwards the
// base ledger can no longer mutate it. A vault that is already delegated is
// delegated again without complaint.
func (c *Controller) DelegateVault(ctx context.Context, caller common.PublicKey, vaultID uint64, validator common.PublicKey) (*VaultRecord, error) {
	return c.update(ctx, "delegate_vault", vaultID, func(ctx context.Context, _ Tx, rec *VaultRecord) (*Event, error) {
		if !rec.IsOwner(caller) {
			return nil, ErrUnauthorized
		}
		rec.setDelegation(validator, c.anchors)
		rec.LastActivity = c.now()

		snapshot, err := NewSnapshot(rec)
		if err != nil {
			return nil, err
		}
		if err = c.delegation.Delegate(ctx, &DelegateRequest{
			Owner:     rec.Owner,
			Seeds:     common.VaultSeeds(rec.VaultID),
			Validator: validator,
			Account:   snapshot,
		}); err != nil {
			return nil, fmt.Errorf("delegation service: %w", err)
		}
		return &Event{
			Kind:         EventVaultDelegated,
			Vault:        rec.Address(),
			VaultID:      rec.VaultID,
			Actor:        caller,
			Counterparty: validator,
			Balance:      rec.Balance,
			Nonce:        rec.Nonce,
			Private:      rec.IsPrivate,
			Timestamp:    rec.LastActivity,
		}, nil
	})
}

// CommitVaultState checkpoints the delegated vault to the base ledger while
// the fast-execution layer keeps authority.
func (c *Controller) CommitVaultState(ctx context.Context, caller common.PublicKey, vaultID uint64) (*VaultRecord, error) {
	return c.update(ctx, "commit_vault_state", vaultID, func(ctx context.Context, _ Tx, rec *VaultRecord) (*Event, error) {
		if !rec.IsDelegated {
			return nil, ErrNotDelegated
		}
		rec.LastActivity = c.now()

		snapshot, err := NewSnapshot(rec)
		if err != nil {
			return nil, err
		}
		if err = c.delegation.Commit(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("delegation service: %w", err)
		}
		return &Event{
			Kind:         EventVaultCommitted,
			Vault:        rec.Address(),
			VaultID:      rec.VaultID,
			Actor:        caller,
			Counterparty: rec.DelegateValidator,
			Balance:      rec.Balance,
			Nonce:        rec.Nonce,
			Private:      rec.IsPrivate,
			Timestamp:    rec.LastActivity,
		}, nil
	})
}

// PrivateTransfer debits `amount` from a delegated vault, then commits the
// result and returns authority to the base ledger in one step. The
// recipient's side of the transfer is settled by the fast-execution layer;
// here it is only recorded in the emitted event.
func (c *Controller) PrivateTransfer(ctx context.Context, caller common.PublicKey, vaultID uint64, amount uint64, recipient common.PublicKey) (*VaultRecord, error) {
	return c.update(ctx, "private_transfer", vaultID, func(ctx context.Context, _ Tx, rec *VaultRecord) (*Event, error) {
		if !rec.IsDelegated {
			return nil, ErrNotDelegated
		}
		if rec.Balance < amount {
			return nil, ErrInsufficientBalance
		}
		if !rec.IsOwner(caller) {
			return nil, ErrUnauthorized
		}

		balance, err := common.CheckedSub(rec.Balance, amount)
		if err != nil {
			return nil, err
		}
		nonce, err := common.CheckedAdd(rec.Nonce, 1)
		if err != nil {
			return nil, err
		}
		wasPrivate := rec.IsPrivate
		rec.Balance = balance
		rec.Nonce = nonce
		rec.LastActivity = c.now()
		rec.clearDelegation()

		if err = c.commitAndUndelegate(ctx, rec); err != nil {
			return nil, err
		}
		return &Event{
			Kind:         EventPrivateTransfer,
			Vault:        rec.Address(),
			VaultID:      rec.VaultID,
			Actor:        caller,
			Counterparty: recipient,
			Amount:       amount,
			Balance:      rec.Balance,
			Nonce:        rec.Nonce,
			Private:      wasPrivate,
			Timestamp:    rec.LastActivity,
		}, nil
	})
}

// UndelegateVault commits the vault and returns authority to the base
// ledger, whichever validator held it.
func (c *Controller) UndelegateVault(ctx context.Context, caller common.PublicKey, vaultID uint64) (*VaultRecord, error) {
	return c.update(ctx, "undelegate_vault", vaultID, func(ctx context.Context, _ Tx, rec *VaultRecord) (*Event, error) {
		if !rec.IsDelegated {
			return nil, ErrNotDelegated
		}
		validator := rec.DelegateValidator
		wasPrivate := rec.IsPrivate
		rec.clearDelegation()
		rec.LastActivity = c.now()

		if err := c.commitAndUndelegate(ctx, rec); err != nil {
			return nil, err
		}
		return &Event{
			Kind:         EventVaultUndelegated,
			Vault:        rec.Address(),
			VaultID:      rec.VaultID,
			Actor:        caller,
			Counterparty: validator,
			Balance:      rec.Balance,
			Nonce:        rec.Nonce,
			Private:      wasPrivate,
			Timestamp:    rec.LastActivity,
		}, nil
	})
}

func (c *Controller) commitAndUndelegate(ctx context.Context, rec *VaultRecord) error {
	snapshot, err := NewSnapshot(rec)
	if err != nil {
		return err
	}
	if err = c.delegation.CommitAndUndelegate(ctx, snapshot); err != nil {
		return fmt.Errorf("delegation service: %w", err)
	}
	return nil
}

// Vault returns the committed record of the vault with the given id.
func (c *Controller) Vault(ctx context.Context, vaultID uint64) (*VaultRecord, error) {
	rec, err := c.store.Vault(ctx, common.VaultAddress(vaultID))
	if err != nil {
		return nil, fmt.Errorf("vault %d: %w", vaultID, err)
	}
	return rec, nil
}

// IsPreconditionFailure reports whether `err` is one of the vault
// precondition errors, as opposed to an infrastructure failure.
func IsPreconditionFailure(err error) bool {
	var vErr *Error
	return errors.As(err, &vErr)
}
