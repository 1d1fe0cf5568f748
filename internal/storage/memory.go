package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryDB implements DB using an in-memory map. Used by tests and the
// run-in-memory configuration.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key. Returns ErrNotFound if absent.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores a key-value pair.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

// Delete removes a key.
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

// Has checks if a key exists.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// snapshot returns the sorted keys and value copies under prefix.
func (m *MemoryDB) snapshot(prefix []byte) ([]string, [][]byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := string(prefix)
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		v := m.data[k]
		values[i] = make([]byte, len(v))
		copy(values[i], v)
	}
	return keys, values
}

// ForEach iterates over all keys with the given prefix in byte order.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	keys, values := m.snapshot(prefix)
	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// NewBatch returns a write batch applied atomically under the write lock.
func (m *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: m}
}

type memoryOp struct {
	key   string
	value []byte // nil means delete
}

type memoryBatch struct {
	db  *MemoryDB
	ops []memoryOp
}

func (mb *memoryBatch) Put(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	mb.ops = append(mb.ops, memoryOp{key: string(key), value: v})
	return nil
}

func (mb *memoryBatch) Delete(key []byte) error {
	mb.ops = append(mb.ops, memoryOp{key: string(key)})
	return nil
}

func (mb *memoryBatch) Commit() error {
	mb.db.mu.Lock()
	defer mb.db.mu.Unlock()
	for _, op := range mb.ops {
		if op.value == nil {
			delete(mb.db.data, op.key)
		} else {
			mb.db.data[op.key] = op.value
		}
	}
	return nil
}

// NewIterator returns an iterator over a point-in-time copy of the keys
// under prefix, so later writes are not observed.
func (m *MemoryDB) NewIterator(prefix []byte) (Iterator, error) {
	keys, values := m.snapshot(prefix)
	return &memoryIterator{keys: keys, values: values}, nil
}

type memoryIterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (mi *memoryIterator) Valid() bool {
	return mi.pos < len(mi.keys)
}

func (mi *memoryIterator) Next() {
	mi.pos++
}

func (mi *memoryIterator) Key() []byte {
	return []byte(mi.keys[mi.pos])
}

func (mi *memoryIterator) Value() ([]byte, error) {
	v := mi.values[mi.pos]
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (mi *memoryIterator) ValueSize() int {
	return len(mi.values[mi.pos])
}

func (mi *memoryIterator) Close() {}

// Close closes the database.
func (m *MemoryDB) Close() error {
	return nil
}
