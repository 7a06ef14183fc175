package store

import (
	"errors"
	"io/fs"

	"kvlog/internal/record"
)

var (
	// ErrAlreadyExists is returned by exclusive creation when the path exists.
	// It is fs.ErrExist, so *fs.PathError values from the OS match it too.
	ErrAlreadyExists = fs.ErrExist

	// ErrCorrupt matches any checksum failure found while reading a value.
	ErrCorrupt = record.ErrChecksum

	ErrClosed = errors.New("store is closed")
)

// Store is a byte-keyed key-value store. Get distinguishes a missing key
// (ok == false) from a present key with an empty value; Delete records an
// empty value rather than removing the key.
type Store interface {
	Get(key []byte) (value []byte, ok bool, err error)
	Insert(key, value []byte) error
	Update(key, value []byte) error
	Delete(key []byte) error
	Close() error
}

// Stats is implemented by engines that can report their size.
type Stats interface {
	// Len is the number of keys reachable through the store.
	Len() int
	// Size is the number of bytes the store occupies on disk.
	Size() (int64, error)
}
