package storage

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB implements DB using Badger.
type BadgerDB struct {
	db *badger.DB
}

// NewBadger creates a new Badger database at the given path. cacheMB sets
// the block cache size; zero or negative uses Badger's default.
func NewBadger(path string, cacheMB int64) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger's built-in logging.
	if cacheMB > 0 {
		opts.BlockCacheSize = cacheMB << 20
	}

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &BadgerDB{db: db}, nil
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// Put stores a key-value pair.
func (b *BadgerDB) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (b *BadgerDB) Delete(key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger has: %w", err)
	}
	return exists, nil
}

// ForEach iterates over all keys with the given prefix.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(val []byte) error {
				return fn(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// NewBatch returns a write batch. Operations are buffered in memory and
// applied inside a single Badger transaction on Commit, so the commit is
// all-or-nothing.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{db: b.db}
}

type badgerOp struct {
	key   []byte
	value []byte // nil means delete
}

type badgerBatch struct {
	db  *badger.DB
	ops []badgerOp
}

func (bb *badgerBatch) Put(key, value []byte) error {
	k := make([]byte, len(key))
	copy(k, key)
	v := make([]byte, len(value))
	copy(v, value)
	bb.ops = append(bb.ops, badgerOp{key: k, value: v})
	return nil
}

func (bb *badgerBatch) Delete(key []byte) error {
	k := make([]byte, len(key))
	copy(k, key)
	bb.ops = append(bb.ops, badgerOp{key: k})
	return nil
}

func (bb *badgerBatch) Commit() error {
	err := bb.db.Update(func(txn *badger.Txn) error {
		for _, op := range bb.ops {
			if op.value == nil {
				if err := txn.Delete(op.key); err != nil {
					return err
				}
			} else {
				if err := txn.Set(op.key, op.value); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger batch commit: %w", err)
	}
	return nil
}

// NewIterator returns a snapshot iterator over the given prefix. The
// backing read transaction is held open until Close, so concurrent writes
// do not disturb an in-progress scan.
func (b *BadgerDB) NewIterator(prefix []byte) (Iterator, error) {
	txn := b.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	it.Seek(prefix)
	return &badgerIterator{txn: txn, it: it, prefix: prefix}, nil
}

type badgerIterator struct {
	txn    *badger.Txn
	it     *badger.Iterator
	prefix []byte
}

func (bi *badgerIterator) Valid() bool {
	return bi.it.ValidForPrefix(bi.prefix)
}

func (bi *badgerIterator) Next() {
	bi.it.Next()
}

func (bi *badgerIterator) Key() []byte {
	return bi.it.Item().KeyCopy(nil)
}

func (bi *badgerIterator) Value() ([]byte, error) {
	val, err := bi.it.Item().ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("badger iterator value: %w", err)
	}
	return val, nil
}

func (bi *badgerIterator) ValueSize() int {
	return int(bi.it.Item().ValueSize())
}

func (bi *badgerIterator) Close() {
	bi.it.Close()
	bi.txn.Discard()
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}
