// Package bolt implements store.Store on bbolt. It follows the log engine's
// contract (empty-value deletes, exclusive creation) so the two engines are
// interchangeable behind the CLI.
package bolt

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"

	"kvlog/internal/logging"
	"kvlog/internal/store"
)

var logger = logging.For("bolt")

var bucket = []byte("kv")

var _ store.Store = (*Store)(nil)
var _ store.Stats = (*Store)(nil)

// ErrEmptyKey is returned for zero-length keys, which bbolt cannot store.
var ErrEmptyKey = errors.New("bolt engine does not support empty keys")

// Store implements store.Store using bbolt (embedded B+ tree).
type Store struct {
	db   *bolt.DB
	path string
}

// Open creates or opens a bbolt database at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	logger.Debug("bolt db opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// CreateExclusive is Open for a path that must not exist yet.
func CreateExclusive(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating bolt db: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("creating bolt db: %w", err)
	}
	return Open(path)
}

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	var (
		val []byte
		ok  bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		// Seek rather than Get: an empty value must still count as present.
		k, v := tx.Bucket(bucket).Cursor().Seek(key)
		if k == nil || !bytes.Equal(k, key) {
			return nil
		}
		val = make([]byte, len(v))
		copy(val, v)
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, mapErr(err)
	}
	return val, ok, nil
}

func (s *Store) Insert(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
	return mapErr(err)
}

func (s *Store) Update(key, value []byte) error {
	return s.Insert(key, value)
}

// Delete stores an empty value; the key remains present.
func (s *Store) Delete(key []byte) error {
	return s.Insert(key, []byte{})
}

func (s *Store) Len() int {
	n := 0
	_ = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucket).Stats().KeyN
		return nil
	})
	return n
}

func (s *Store) Size() (int64, error) {
	var size int64
	err := s.db.View(func(tx *bolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, mapErr(err)
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	logger.Debug("bolt db closed", "path", s.path)
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return store.ErrClosed
	}
	return err
}
