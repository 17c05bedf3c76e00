package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/obscura-labs/obscura/common"
)

// CreatePermission grants `permitted` read visibility over the vault. The
// grants are consumed by the access-control reader that guards private
// vaults.
//
// There is no duplicate check: granting the same identity twice collides on
// the grant address and fails with ErrAccountInUse at allocation.
func (c *Controller) CreatePermission(ctx context.Context, caller common.PublicKey, vaultID uint64, permitted common.PublicKey) (*PermissionRecord, error) {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create_permission: begin tx: %w", err)
	}
	defer c.rollback(ctx, tx)

	rec, err := tx.LockVault(ctx, common.VaultAddress(vaultID))
	if err != nil {
		return nil, fmt.Errorf("create_permission vault %d: %w", vaultID, err)
	}
	if !rec.IsOwner(caller) {
		return nil, fmt.Errorf("create_permission vault %d: %w", vaultID, ErrUnauthorized)
	}

	perm := &PermissionRecord{
		Vault:     rec.Address(),
		Permitted: permitted,
		GrantedBy: caller,
		GrantedAt: c.now(),
	}
	if err = tx.InsertPermission(ctx, perm); err != nil {
		return nil, fmt.Errorf("create_permission vault %d: %w", vaultID, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create_permission vault %d: commit: %w", vaultID, err)
	}
	c.emit(ctx, &Event{
		Kind:         EventPermissionGranted,
		Vault:        perm.Vault,
		VaultID:      vaultID,
		Actor:        caller,
		Counterparty: permitted,
		Private:      rec.IsPrivate,
		Timestamp:    perm.GrantedAt,
	})
	return perm, nil
}

// Permissions lists the grants on the vault with the given id.
func (c *Controller) Permissions(ctx context.Context, vaultID uint64) ([]*PermissionRecord, error) {
	addr := common.VaultAddress(vaultID)
	if _, err := c.store.Vault(ctx, addr); err != nil {
		return nil, fmt.Errorf("vault %d: %w", vaultID, err)
	}
	return c.store.Permissions(ctx, addr)
}

// CanRead reports whether `reader` may see the state of the vault. Vaults
// that are not private are public; private ones are visible to the owner and
// to identities holding a grant.
func (c *Controller) CanRead(ctx context.Context, rec *VaultRecord, reader common.PublicKey) (bool, error) {
	if !rec.IsPrivate || rec.IsOwner(reader) {
		return true, nil
	}
	_, err := c.store.Permission(ctx, common.PermissionAddress(rec.Address(), reader))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrPermissionNotFound):
		return false, nil
	default:
		return false, err
	}
}
