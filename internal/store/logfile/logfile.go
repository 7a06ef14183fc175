// Package logfile is an append-only, single-file key-value store.
//
// Every write appends a checksummed record (see package record) to the end
// of the file and points an in-memory index at it. Reads seek to the
// indexed offset and verify the checksum before returning the value.
//
// The index only knows about records written through the Store that owns
// it: opening a file that already holds records starts with an empty index,
// and those records stay unreachable until their keys are written again.
// Superseded records are never reclaimed.
package logfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"kvlog/internal/logging"
	"kvlog/internal/record"
	"kvlog/internal/store"
)

var logger = logging.For("logfile")

var _ store.Store = (*Store)(nil)
var _ store.Stats = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithSync makes every append fsync the file before the index is updated.
func WithSync(on bool) Option {
	return func(s *Store) { s.sync = on }
}

// Store owns one log file and the index of records it has written.
// Operations are serialized; one Store per file per process.
type Store struct {
	mu    sync.Mutex
	f     *os.File
	path  string
	index map[string]int64 // key -> offset of its latest record
	sync  bool
}

// CreateExclusive creates a new log at path. It fails with an error matching
// store.ErrAlreadyExists if anything already exists there.
func CreateExclusive(path string, opts ...Option) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating log: %w", err)
	}
	return newStore(f, path, opts), nil
}

// OpenOrCreate opens the log at path, creating it if absent. Existing
// contents are kept but not indexed.
func OpenOrCreate(path string, opts ...Option) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	return newStore(f, path, opts), nil
}

func newStore(f *os.File, path string, opts []Option) *Store {
	s := &Store{
		f:     f,
		path:  path,
		index: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	logger.Debug("log opened", "path", path, "sync", s.sync)
	return s
}

// Insert appends a record for key and makes it the value returned by Get.
// On error the index is left untouched, though a partial record may remain
// at the end of the file.
func (s *Store) Insert(key, value []byte) error {
	buf, err := record.Encode(key, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return store.ErrClosed
	}

	// The file end is authoritative; no cached write offset.
	off, err := s.f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seeking to end of log: %w", err)
	}
	if _, err := s.f.Write(buf); err != nil {
		return fmt.Errorf("appending record at offset %d: %w", off, err)
	}
	if s.sync {
		if err := s.f.Sync(); err != nil {
			return fmt.Errorf("syncing log: %w", err)
		}
	}

	s.index[string(key)] = off
	logger.Debug("record appended", "offset", off, "key_len", len(key), "val_len", len(value))
	return nil
}

// Update is Insert: a new record is appended and the old one is orphaned.
func (s *Store) Update(key, value []byte) error {
	return s.Insert(key, value)
}

// Delete appends an empty value for key. The key stays visible to Get.
func (s *Store) Delete(key []byte) error {
	return s.Insert(key, []byte{})
}

// Get returns the latest value written for key by this Store. ok is false
// if the key was never written; a checksum failure returns an error
// matching store.ErrCorrupt and no value.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil, false, store.ErrClosed
	}

	off, ok := s.index[string(key)]
	if !ok {
		return nil, false, nil
	}

	info, err := s.f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("stat log: %w", err)
	}
	rec, err := record.ReadAt(s.f, off, info.Size())
	if err != nil {
		// An indexed offset always had a full record behind it.
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("record at offset %d is gone: %w", off, io.ErrUnexpectedEOF)
		}
		return nil, false, err
	}

	if err := rec.Verify(); err != nil {
		logger.Warn("corrupt record", "path", s.path, "offset", off, "err", err)
		return nil, false, err
	}
	return rec.Value, true, nil
}

// Len is the number of keys in the index.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Size is the current length of the log file in bytes.
func (s *Store) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, store.ErrClosed
	}
	info, err := s.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat log: %w", err)
	}
	return info.Size(), nil
}

// Close releases the file. Later calls return store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return store.ErrClosed
	}
	err := s.f.Close()
	s.f = nil
	s.index = nil
	logger.Debug("log closed", "path", s.path)
	return err
}
