package blockmeta

import (
	"errors"
	"fmt"
	"time"

	"github.com/emberchain/chainstate/internal/log"
	"github.com/emberchain/chainstate/internal/metrics"
	"github.com/emberchain/chainstate/pkg/types"
)

// ErrUnresolvableParent is returned when a stored non-genesis entry names a
// parent with no stored entry of its own. The block tree is broken and a
// reindex is required; startup must not continue.
var ErrUnresolvableParent = errors.New("blockmeta: block index entry references unknown parent")

// LoadBlockIndex scans every stored block-index entry and reconstructs the
// in-memory tree. insert is a get-or-create hook over a hash-addressed node
// arena: repeated calls for the same hash must return the same node. Stored
// order does not matter — a child scanned before its parent wires a
// placeholder node that is filled when the parent's own record is scanned.
// After the scan, any parent reference without a stored record fails the
// load with ErrUnresolvableParent.
func (s *Store) LoadBlockIndex(insert func(types.Hash) *BlockNode) error {
	started := time.Now()

	stored := make(map[types.Hash]bool)
	parents := make(map[types.Hash]types.Hash) // child -> parent

	err := s.db.ForEach(prefixBlockIndex, func(key, value []byte) error {
		if len(key) != len(prefixBlockIndex)+types.HashSize {
			return fmt.Errorf("%w: malformed block index key of %d bytes", ErrCorruptRecord, len(key))
		}
		var hash types.Hash
		copy(hash[:], key[len(prefixBlockIndex):])

		var e IndexEntry
		if err := decodeRecord(value, &e); err != nil {
			return fmt.Errorf("block %s: %w", hash, err)
		}

		node := insert(hash)
		node.Hash = hash
		node.Height = e.Height
		node.Status = e.Status
		node.File = e.File
		node.DataPos = e.DataPos
		node.UndoPos = e.UndoPos
		node.Version = e.Version
		node.MerkleRoot = e.MerkleRoot
		node.Time = e.Time
		node.Bits = e.Bits
		node.Nonce = e.Nonce

		stored[hash] = true
		if !e.Parent.IsZero() {
			node.Parent = insert(e.Parent)
			parents[hash] = e.Parent
		}
		return nil
	})
	metrics.ObserveStoreOp("blockmeta", "load_block_index", err, started)
	if err != nil {
		return fmt.Errorf("load block index: %w", err)
	}

	for child, parent := range parents {
		if !stored[parent] {
			return fmt.Errorf("%w: block %s names parent %s", ErrUnresolvableParent, child, parent)
		}
	}

	log.BlockMeta.Info().
		Int("entries", len(stored)).
		Dur("duration", time.Since(started)).
		Msg("loaded block index")
	return nil
}
