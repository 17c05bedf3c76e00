package vault_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/storage/inmemory"
	"github.com/obscura-labs/obscura/vault"
)

var (
	owner          = testKey(1)
	stranger       = testKey(2)
	recipient      = testKey(3)
	plainValidator = testKey(4)
	anchors        = vault.DefaultTrustAnchors()
)

func testKey(b byte) common.PublicKey {
	var pk common.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

// fakeDelegation records calls and fails on demand.
type fakeDelegation struct {
	mu sync.Mutex

	delegated    []*vault.DelegateRequest
	commits      []vault.Snapshot
	undelegates  []vault.Snapshot
	failNextCall error
}

func (f *fakeDelegation) fail() error {
	err := f.failNextCall
	f.failNextCall = nil
	return err
}

func (f *fakeDelegation) Delegate(_ context.Context, req *vault.DelegateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.delegated = append(f.delegated, req)
	return nil
}

func (f *fakeDelegation) Commit(_ context.Context, s vault.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.commits = append(f.commits, s)
	return nil
}

func (f *fakeDelegation) CommitAndUndelegate(_ context.Context, s vault.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.undelegates = append(f.undelegates, s)
	return nil
}

// recordingSink keeps every emitted event.
type recordingSink struct {
	mu     sync.Mutex
	events []*vault.Event
}

func (r *recordingSink) Emit(_ context.Context, ev *vault.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) kinds() []vault.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]vault.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

var errServiceDown = errors.New("delegation service unavailable")

type harness struct {
	ctx        context.Context
	store      *inmemory.Store
	delegation *fakeDelegation
	sink       *recordingSink
	controller *vault.Controller
	clock      int64
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		ctx:        context.Background(),
		store:      inmemory.NewStore(),
		delegation: &fakeDelegation{},
		sink:       &recordingSink{},
		clock:      1_700_000_000,
	}
	h.controller = vault.NewController(h.store, h.delegation, anchors, log.NewNopLogger(),
		vault.WithEventSink(h.sink),
		vault.WithClock(func() int64 {
			h.clock++
			return h.clock
		}),
	)
	return h
}

// fund gives `who` native asset to deposit.
func (h *harness) fund(who common.PublicKey, amount uint64) {
	h.store.SetNativeBalance(common.IdentityAddress(who), amount)
}

func (h *harness) vault(t *testing.T, id uint64) *vault.VaultRecord {
	rec, err := h.controller.Vault(h.ctx, id)
	require.NoError(t, err)
	require.NoError(t, rec.CheckInvariants(anchors))
	return rec
}

// createFunded creates vault `id` owned by `owner` holding `balance`.
func (h *harness) createFunded(t *testing.T, id uint64, balance uint64) {
	_, err := h.controller.CreateVault(h.ctx, owner, id)
	require.NoError(t, err)
	if balance > 0 {
		h.fund(owner, balance)
		_, err = h.controller.Deposit(h.ctx, owner, id, balance)
		require.NoError(t, err)
	}
}
