// Package storage provides the ordered key-value boundary the chainstate
// stores are built on.
package storage

import "errors"

// ErrNotFound is returned by Get when the key is absent. Callers treat it
// as a normal negative result, not a storage fault.
var ErrNotFound = errors.New("storage: key not found")

// DB is the interface for key-value storage.
type DB interface {
	// Get retrieves a value by key. Returns ErrNotFound if absent.
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in byte order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	// NewBatch returns an empty write batch. Commit is all-or-nothing:
	// either every accumulated put/delete is durable or none is.
	NewBatch() Batch
	// NewIterator returns a snapshot iterator over keys with the given
	// prefix, in byte order. Writes after creation are not observed.
	// The caller must Close the iterator.
	NewIterator(prefix []byte) (Iterator, error)
	Close() error
}

// Batch accumulates writes for an atomic commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Iterator walks keys in byte order. It owns its snapshot until Close.
type Iterator interface {
	Valid() bool
	Next()
	// Key returns the current key. Valid only while Valid() is true.
	Key() []byte
	// Value returns a copy of the current value.
	Value() ([]byte, error)
	// ValueSize returns the stored value length without materializing it.
	ValueSize() int
	Close()
}
