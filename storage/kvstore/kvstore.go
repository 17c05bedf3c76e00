// Package kvstore is an embedded key-value store on top of pogreb. It holds
// state that must survive restarts of a single node, so unlike a cache it
// never drops writes: anything it cannot persist is reported to the caller.
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/akrylysov/pogreb"
	"github.com/oasisprotocol/oasis-core/go/common/cbor"

	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/metrics"
)

// DefaultReadyTimeout bounds how long Open waits for pogreb before handing
// out a store that is still recovering.
const DefaultReadyTimeout = 30 * time.Second

// ErrNotReady is returned while the store is still recovering in the
// background. Has reports false in that state.
var ErrNotReady = errors.New("kvstore: store is still recovering")

// Key is a CBOR-encoded (namespace, parts) pair.
type Key []byte

// NewKey builds the key of `parts` within `namespace`.
func NewKey(namespace string, parts ...interface{}) Key {
	return Key(cbor.Marshal([]interface{}{namespace, parts}))
}

// String renders the key for logs. It is not a stable encoding.
func (k Key) String() string {
	var decoded interface{}
	s := fmt.Sprintf("%x", []byte(k))
	if err := cbor.Unmarshal(k, &decoded); err == nil {
		s = fmt.Sprintf("%+v", decoded)
	}
	if len(s) > 100 {
		s = s[:95] + "[...]"
	}
	return s
}

// Store is a byte-level key-value store. Load and Save give a typed view.
type Store interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Close() error
}

type pogrebStore struct {
	// db is nil until pogreb finishes opening.
	db atomic.Pointer[pogreb.DB]

	path    string
	logger  *log.Logger
	metrics *metrics.KVStoreMetrics // optional
}

var _ Store = (*pogrebStore)(nil)

// Open opens the store at `path`, creating it if needed. `m` may be nil.
//
// After a crash pogreb rebuilds its index from the data segments, which can
// take far longer than DefaultReadyTimeout. In that case Open returns a store
// that fails writes with ErrNotReady until recovery completes.
func Open(logger *log.Logger, path string, m *metrics.KVStoreMetrics) (Store, error) {
	return open(logger, path, m, DefaultReadyTimeout)
}

func open(logger *log.Logger, path string, m *metrics.KVStoreMetrics, readyTimeout time.Duration) (Store, error) {
	s := &pogrebStore{
		path:    path,
		logger:  logger,
		metrics: m,
	}

	done := make(chan error, 1)
	go func() {
		done <- s.recover()
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-time.After(readyTimeout):
		// A failed recovery from here on is only logged; the store then
		// stays unavailable until the next restart.
		logger.Warn("kvstore still recovering, continuing in the background", "path", path)
	}
	return s, nil
}

// recover opens pogreb and publishes the handle once it is usable.
func (s *pogrebStore) recover() error {
	if err := removeIndexBackups(s.path); err != nil {
		s.logger.Warn("failed to remove stale index backups", "path", s.path, "err", err)
	}

	s.logger.Info("opening kvstore", "path", s.path)
	db, err := pogreb.Open(s.path, &pogreb.Options{BackgroundSyncInterval: -1})
	if err != nil {
		s.logger.Error("failed to open kvstore", "path", s.path, "err", err)
		return err
	}
	s.db.Store(db)
	s.logger.Info("kvstore ready", "path", s.path, "entries", db.Count())
	return nil
}

// removeIndexBackups deletes the index copies pogreb leaves behind when it
// reindexes. Each crash during a reindex appends another ".bac", and the
// names eventually exceed what the filesystem accepts. The index is always
// rebuildable from the *.psg segments, which are never touched.
func removeIndexBackups(dir string) error {
	backups, err := filepath.Glob(filepath.Join(dir, "*.bac"))
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range backups {
		if err := os.Remove(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Has implements Store.
func (s *pogrebStore) Has(key []byte) (bool, error) {
	db := s.db.Load()
	if db == nil {
		return false, nil
	}
	return db.Has(key)
}

// Get implements Store. Missing keys yield a nil value.
func (s *pogrebStore) Get(key []byte) ([]byte, error) {
	db := s.db.Load()
	if db == nil {
		return nil, ErrNotReady
	}
	return db.Get(key)
}

// Put implements Store.
func (s *pogrebStore) Put(key []byte, value []byte) error {
	db := s.db.Load()
	if db == nil {
		s.logger.Warn("refusing write to recovering kvstore", "key", Key(key))
		return s.countWrite("put", ErrNotReady)
	}
	return s.countWrite("put", db.Put(key, value))
}

// Delete implements Store.
func (s *pogrebStore) Delete(key []byte) error {
	db := s.db.Load()
	if db == nil {
		return s.countWrite("delete", ErrNotReady)
	}
	return s.countWrite("delete", db.Delete(key))
}

// Close implements Store.
func (s *pogrebStore) Close() error {
	db := s.db.Load()
	if db == nil {
		// Interrupting recovery is harmless; it restarts on the next open.
		s.logger.Warn("closing kvstore before recovery finished", "path", s.path)
		return nil
	}
	s.logger.Info("closing kvstore", "path", s.path)
	return db.Close()
}

func (s *pogrebStore) countWrite(op string, err error) error {
	if s.metrics != nil {
		s.metrics.Writes(op, err).Inc()
	}
	return err
}

func countRead(store Store, status metrics.ReadStatus) {
	if s, ok := store.(*pogrebStore); ok && s.metrics != nil {
		s.metrics.Reads(status).Inc()
	}
}

// Load reads the CBOR value at `key` into a new `Value`. The boolean is false
// if the key is absent.
func Load[Value any](store Store, key Key) (*Value, bool, error) {
	found, err := store.Has(key)
	if err != nil {
		countRead(store, metrics.ReadStatusError)
		return nil, false, err
	}
	if !found {
		countRead(store, metrics.ReadStatusNotFound)
		return nil, false, nil
	}
	raw, err := store.Get(key)
	if err != nil {
		countRead(store, metrics.ReadStatusError)
		return nil, false, fmt.Errorf("kvstore: reading %s: %w", key, err)
	}
	var value Value
	if err = cbor.Unmarshal(raw, &value); err != nil {
		countRead(store, metrics.ReadStatusBadValue)
		return nil, false, fmt.Errorf("kvstore: decoding %s as %T: %w", key, value, err)
	}
	countRead(store, metrics.ReadStatusFound)
	return &value, true, nil
}

// Save writes `value` at `key`, CBOR-encoded.
func Save[Value any](store Store, key Key, value *Value) error {
	return store.Put(key, cbor.Marshal(value))
}
