package coindb

import (
	"fmt"

	"github.com/emberchain/chainstate/internal/storage"
	"github.com/emberchain/chainstate/pkg/types"
)

// Cursor is a snapshot iterator over the coin-entry namespace, ordered by
// key bytes. It owns its underlying iterator until Close; callers must
// release it (defer c.Close()). Value decoding is lazy so a size-only scan
// never deserializes entries.
type Cursor struct {
	it storage.Iterator
}

// Cursor opens a snapshot cursor over all coin entries. Writes applied
// after the cursor is opened are not observed.
func (s *Store) Cursor() (*Cursor, error) {
	it, err := s.db.NewIterator(prefixCoins)
	if err != nil {
		return nil, fmt.Errorf("coins cursor: %w", err)
	}
	return &Cursor{it: it}, nil
}

// Valid reports whether the cursor is positioned on an entry.
func (c *Cursor) Valid() bool {
	return c.it.Valid()
}

// Next advances the cursor, invalidating it past the last entry.
func (c *Cursor) Next() {
	c.it.Next()
}

// Key returns the txid of the current entry.
func (c *Cursor) Key() (types.Hash, error) {
	key := c.it.Key()
	if len(key) != len(prefixCoins)+types.HashSize {
		return types.Hash{}, fmt.Errorf("%w: malformed coin key of %d bytes", ErrCorruptCoins, len(key))
	}
	var txid types.Hash
	copy(txid[:], key[len(prefixCoins):])
	return txid, nil
}

// Value decodes and returns the current coin entry.
func (c *Cursor) Value() (*Coins, error) {
	data, err := c.it.Value()
	if err != nil {
		return nil, fmt.Errorf("coins cursor value: %w", err)
	}
	return decodeCoins(data)
}

// ValueSize returns the serialized size of the current entry without
// decoding it.
func (c *Cursor) ValueSize() int {
	return c.it.ValueSize()
}

// Close releases the underlying iterator. Safe to call exactly once;
// callers defer it immediately after opening the cursor.
func (c *Cursor) Close() {
	c.it.Close()
}
