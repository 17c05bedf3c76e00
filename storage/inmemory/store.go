// Package inmemory implements the vault store in process memory. It is meant
// for tests and single-process development setups; nothing survives a
// restart.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/vault"
)

const moduleName = "inmemory"

// Store is an in-memory vault.Store. Transactions are fully serialized:
// one transaction holds the store lock from Begin until Commit or Rollback.
type Store struct {
	lock sync.Mutex // held by the active transaction

	// Committed state. Guarded by stateLock so that reads don't have to
	// wait for an active transaction.
	stateLock   sync.RWMutex
	vaults      map[common.Address]vault.VaultRecord
	permissions map[common.Address]vault.PermissionRecord
	native      map[common.Address]uint64
}

var _ vault.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		vaults:      make(map[common.Address]vault.VaultRecord),
		permissions: make(map[common.Address]vault.PermissionRecord),
		native:      make(map[common.Address]uint64),
	}
}

// Begin implements vault.Store.
func (s *Store) Begin(ctx context.Context) (vault.Tx, error) {
	s.lock.Lock()
	return &tx{
		store:       s,
		vaults:      make(map[common.Address]vault.VaultRecord),
		permissions: make(map[common.Address]vault.PermissionRecord),
		native:      make(map[common.Address]uint64),
	}, nil
}

// Vault implements vault.Store.
func (s *Store) Vault(ctx context.Context, addr common.Address) (*vault.VaultRecord, error) {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()
	rec, ok := s.vaults[addr]
	if !ok {
		return nil, vault.ErrVaultNotFound
	}
	return &rec, nil
}

// Permission implements vault.Store.
func (s *Store) Permission(ctx context.Context, addr common.Address) (*vault.PermissionRecord, error) {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()
	rec, ok := s.permissions[addr]
	if !ok {
		return nil, vault.ErrPermissionNotFound
	}
	return &rec, nil
}

// Permissions implements vault.Store. Grants are ordered by grant time,
// then by permitted key.
func (s *Store) Permissions(ctx context.Context, vaultAddr common.Address) ([]*vault.PermissionRecord, error) {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()
	perms := []*vault.PermissionRecord{}
	for _, p := range s.permissions {
		if p.Vault.Equal(vaultAddr) {
			p := p
			perms = append(perms, &p)
		}
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].GrantedAt != perms[j].GrantedAt {
			return perms[i].GrantedAt < perms[j].GrantedAt
		}
		return perms[i].Permitted.String() < perms[j].Permitted.String()
	})
	return perms, nil
}

// NativeBalance implements vault.Store.
func (s *Store) NativeBalance(ctx context.Context, addr common.Address) (uint64, error) {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()
	return s.native[addr], nil
}

// SetNativeBalance overwrites a native balance. Test helper.
func (s *Store) SetNativeBalance(addr common.Address, amount uint64) {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()
	s.native[addr] = amount
}

// Name implements vault.Store.
func (s *Store) Name() string {
	return moduleName
}

// tx buffers writes until Commit.
type tx struct {
	store *Store
	done  bool

	vaults      map[common.Address]vault.VaultRecord
	permissions map[common.Address]vault.PermissionRecord
	native      map[common.Address]uint64
}

var _ vault.Tx = (*tx)(nil)

func (t *tx) vault(addr common.Address) (vault.VaultRecord, bool) {
	if rec, ok := t.vaults[addr]; ok {
		return rec, true
	}
	t.store.stateLock.RLock()
	defer t.store.stateLock.RUnlock()
	rec, ok := t.store.vaults[addr]
	return rec, ok
}

func (t *tx) nativeBalance(addr common.Address) uint64 {
	if v, ok := t.native[addr]; ok {
		return v
	}
	t.store.stateLock.RLock()
	defer t.store.stateLock.RUnlock()
	return t.store.native[addr]
}

func (t *tx) LockVault(ctx context.Context, addr common.Address) (*vault.VaultRecord, error) {
	rec, ok := t.vault(addr)
	if !ok {
		return nil, vault.ErrVaultNotFound
	}
	return &rec, nil
}

func (t *tx) InsertVault(ctx context.Context, rec *vault.VaultRecord) error {
	if _, ok := t.vault(rec.Address()); ok {
		return vault.ErrAccountInUse
	}
	t.vaults[rec.Address()] = *rec
	return nil
}

func (t *tx) UpdateVault(ctx context.Context, rec *vault.VaultRecord) error {
	if _, ok := t.vault(rec.Address()); !ok {
		return vault.ErrVaultNotFound
	}
	t.vaults[rec.Address()] = *rec
	return nil
}

func (t *tx) InsertPermission(ctx context.Context, rec *vault.PermissionRecord) error {
	addr := rec.Address()
	if _, ok := t.permissions[addr]; ok {
		return vault.ErrAccountInUse
	}
	t.store.stateLock.RLock()
	_, exists := t.store.permissions[addr]
	t.store.stateLock.RUnlock()
	if exists {
		return vault.ErrAccountInUse
	}
	t.permissions[addr] = *rec
	return nil
}

func (t *tx) TransferNative(ctx context.Context, from, to common.Address, amount uint64) error {
	fromBalance := t.nativeBalance(from)
	if fromBalance < amount {
		return vault.ErrInsufficientFunds
	}
	if from.Equal(to) {
		return nil
	}
	toBalance, err := common.CheckedAdd(t.nativeBalance(to), amount)
	if err != nil {
		return err
	}
	t.native[from] = fromBalance - amount
	t.native[to] = toBalance
	return nil
}

func (t *tx) MintNative(ctx context.Context, to common.Address, amount uint64) error {
	balance, err := common.CheckedAdd(t.nativeBalance(to), amount)
	if err != nil {
		return err
	}
	t.native[to] = balance
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.store.stateLock.Lock()
	for addr, rec := range t.vaults {
		t.store.vaults[addr] = rec
	}
	for addr, rec := range t.permissions {
		t.store.permissions[addr] = rec
	}
	for addr, v := range t.native {
		t.store.native[addr] = v
	}
	t.store.stateLock.Unlock()
	t.finish()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	t.store.lock.Unlock()
}
