// Package local implements an in-process fast-execution layer. It takes
// authority over delegated vaults, keeps the checkpoints pushed back to the
// base ledger, and persists both in a pogreb store so a development node
// survives restarts.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/delegation"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/metrics"
	"github.com/obscura-labs/obscura/storage/kvstore"
	"github.com/obscura-labs/obscura/vault"
)

const moduleName = "delegation_local"

const (
	delegationNamespace = "delegation"
	checkpointNamespace = "checkpoint"
)

// Delegation is the authority the layer holds over one account.
type Delegation struct {
	Owner       common.PublicKey
	Validator   common.PublicKey
	Seeds       [][]byte
	DelegatedAt int64
	// Commits counts checkpoints made while delegated.
	Commits uint64
}

// Checkpoint is the latest account state committed to the base ledger.
type Checkpoint struct {
	Data        []byte
	CommittedAt int64
	// Undelegated is set when the checkpoint returned authority.
	Undelegated bool
}

// Service is a vault.DelegationService.
type Service struct {
	// Calls are serialized so each one is atomic over the store.
	mu sync.Mutex

	store  kvstore.Store
	now    func() time.Time
	logger *log.Logger
}

var _ vault.DelegationService = (*Service)(nil)

// Open opens (or creates) the layer's store at `path`.
func Open(path string, logger *log.Logger) (*Service, error) {
	logger = logger.WithModule(moduleName)
	store, err := kvstore.Open(logger, path, metrics.NewDefaultKVStoreMetrics("obscura", moduleName))
	if err != nil {
		return nil, fmt.Errorf("opening delegation store: %w", err)
	}
	return New(store, logger), nil
}

// New creates a service on top of an open store.
func New(store kvstore.Store, logger *log.Logger) *Service {
	return &Service{
		store:  store,
		now:    time.Now,
		logger: logger,
	}
}

func delegationKey(addr common.Address) kvstore.Key {
	return kvstore.NewKey(delegationNamespace, addr[:])
}

func checkpointKey(addr common.Address) kvstore.Key {
	return kvstore.NewKey(checkpointNamespace, addr[:])
}

// Delegate implements vault.DelegationService. Delegating an account that
// is already delegated replaces the delegation.
func (s *Service) Delegate(ctx context.Context, req *vault.DelegateRequest) error {
	if err := delegation.CheckRequest(req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := &Delegation{
		Owner:       req.Owner,
		Validator:   req.Validator,
		Seeds:       req.Seeds,
		DelegatedAt: s.now().Unix(),
	}
	if err := kvstore.Save(s.store, delegationKey(req.Account.Address), d); err != nil {
		return err
	}
	s.logger.Info("account delegated",
		"account", req.Account.Address,
		"validator", req.Validator,
	)
	return nil
}

// Commit implements vault.DelegationService.
func (s *Service) Commit(ctx context.Context, snapshot vault.Snapshot) error {
	return s.commit(snapshot, false)
}

// CommitAndUndelegate implements vault.DelegationService.
func (s *Service) CommitAndUndelegate(ctx context.Context, snapshot vault.Snapshot) error {
	return s.commit(snapshot, true)
}

func (s *Service) commit(snapshot vault.Snapshot, undelegate bool) error {
	if _, err := delegation.DecodeSnapshot(snapshot); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := delegationKey(snapshot.Address)
	d, found, err := kvstore.Load[Delegation](s.store, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", delegation.ErrNotDelegated, snapshot.Address)
	}

	// Authority is released last, so a failure leaves the delegation in place.
	checkpoint := &Checkpoint{
		Data:        snapshot.Data,
		CommittedAt: s.now().Unix(),
		Undelegated: undelegate,
	}
	if err = kvstore.Save(s.store, checkpointKey(snapshot.Address), checkpoint); err != nil {
		return err
	}
	if undelegate {
		if err = s.store.Delete(key); err != nil {
			return err
		}
		s.logger.Info("account undelegated", "account", snapshot.Address, "commits", d.Commits+1)
		return nil
	}
	d.Commits++
	return kvstore.Save(s.store, key, d)
}

// Delegation returns the delegation of the account at `addr`, if any.
func (s *Service) Delegation(addr common.Address) (*Delegation, bool, error) {
	return kvstore.Load[Delegation](s.store, delegationKey(addr))
}

// LastCheckpoint returns the latest state committed for the account at `addr`.
func (s *Service) LastCheckpoint(addr common.Address) (*Checkpoint, bool, error) {
	return kvstore.Load[Checkpoint](s.store, checkpointKey(addr))
}

// Close closes the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}
