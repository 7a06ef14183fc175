// Package pebble implements store.Store on Pebble, an LSM engine. Like the
// bolt engine it keeps the log engine's contract: deletes store an empty
// value and CreateExclusive refuses an existing path.
package pebble

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble/v2"

	"kvlog/internal/logging"
	"kvlog/internal/store"
)

var logger = logging.For("pebble")

var _ store.Store = (*Store)(nil)
var _ store.Stats = (*Store)(nil)

// Store implements store.Store over a Pebble database directory.
type Store struct {
	// Pebble panics on use after Close, so the closed state is tracked here.
	mu     sync.RWMutex
	db     *pebble.DB
	dir    string
	sync   bool
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithSync makes every write wait for the WAL to reach stable storage.
func WithSync(on bool) Option {
	return func(s *Store) { s.sync = on }
}

// Open creates or opens a Pebble database in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %w", err)
	}
	s := &Store{db: db, dir: dir}
	for _, o := range opts {
		o(s)
	}
	logger.Debug("pebble db opened", "dir", dir, "sync", s.sync)
	return s, nil
}

// CreateExclusive is Open for a directory that must not exist yet.
func CreateExclusive(dir string, opts ...Option) (*Store, error) {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating pebble db: %w", err)
	}
	return Open(dir, opts...)
}

func (s *Store) writeOpts() *pebble.WriteOptions {
	if s.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, store.ErrClosed
	}
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get: %w", err)
	}
	defer closer.Close()
	// v is only valid until closer is closed.
	val := make([]byte, len(v))
	copy(val, v)
	return val, true, nil
}

func (s *Store) Insert(key, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	if err := s.db.Set(key, value, s.writeOpts()); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

func (s *Store) Update(key, value []byte) error {
	return s.Insert(key, value)
}

// Delete stores an empty value; the key remains present.
func (s *Store) Delete(key []byte) error {
	return s.Insert(key, []byte{})
}

// Len counts live keys with a full scan.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		logger.Warn("len: iterator", "err", err)
		return 0
	}
	defer iter.Close()
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n
}

// Size reports the disk space used by the database directory.
func (s *Store) Size() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, store.ErrClosed
	}
	return int64(s.db.Metrics().DiskSpaceUsage()), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing pebble db: %w", err)
	}
	logger.Debug("pebble db closed", "dir", s.dir)
	return nil
}
