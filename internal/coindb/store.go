package coindb

import (
	"errors"
	"fmt"
	"time"

	"github.com/emberchain/chainstate/internal/log"
	"github.com/emberchain/chainstate/internal/metrics"
	"github.com/emberchain/chainstate/internal/storage"
	"github.com/emberchain/chainstate/pkg/types"
)

// Key prefixes for the coin store. The best-block pointer lives under its
// own prefix so a coin-namespace scan never crosses record families, but it
// shares the store's database so one batch covers both.
var (
	prefixCoins  = []byte("c/") // c/<txid(32)> -> Coins JSON
	prefixScript = []byte("s/") // s/<scripthash(32)><txid(32)> -> empty (script index)
	keyBestBlock = []byte("m/best")
)

// Store is the canonical unspent-output set backed by a storage.DB.
// Writes go through ApplyDiff only; the store assumes a single writer.
type Store struct {
	db          storage.DB
	scriptIndex bool
}

// NewStore creates a coin store backed by the given database. When
// scriptIndex is true, ApplyDiff maintains the script-hash index
// incrementally; an existing index can be rebuilt or dropped regardless.
func NewStore(db storage.DB, scriptIndex bool) *Store {
	return &Store{db: db, scriptIndex: scriptIndex}
}

// coinKey builds a storage key for a coin entry: "c/" + txid(32).
func coinKey(txid types.Hash) []byte {
	key := make([]byte, len(prefixCoins)+types.HashSize)
	copy(key, prefixCoins)
	copy(key[len(prefixCoins):], txid[:])
	return key
}

// GetCoins retrieves the unspent outputs of a transaction.
// Returns storage.ErrNotFound if the transaction is unknown or fully spent.
func (s *Store) GetCoins(txid types.Hash) (*Coins, error) {
	data, err := s.db.Get(coinKey(txid))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("coins get: %w", err)
	}
	c, err := decodeCoins(data)
	if err != nil {
		return nil, fmt.Errorf("coins %s: %w", txid, err)
	}
	return c, nil
}

// HaveCoins checks whether any unspent output remains for the transaction,
// without decoding the entry.
func (s *Store) HaveCoins(txid types.Hash) (bool, error) {
	return s.db.Has(coinKey(txid))
}

// BestBlock returns the hash of the block whose application produced the
// current coin set. Returns the zero hash if the store was never written.
func (s *Store) BestBlock() (types.Hash, error) {
	data, err := s.db.Get(keyBestBlock)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, nil
	}
	if err != nil {
		return types.Hash{}, fmt.Errorf("best block get: %w", err)
	}
	if len(data) != types.HashSize {
		return types.Hash{}, fmt.Errorf("%w: best block pointer is %d bytes", ErrCorruptCoins, len(data))
	}
	var h types.Hash
	copy(h[:], data)
	return h, nil
}

// ApplyDiff atomically applies a set of coin changes together with the new
// best-block pointer. A nil or empty Coins value is a tombstone: the entry
// is erased. When the script index is enabled, the index adjustments for
// each changed transaction are folded into the same batch, so the coin set,
// the index, and the pointer move together or not at all.
func (s *Store) ApplyDiff(changes map[types.Hash]*Coins, best types.Hash) error {
	started := time.Now()
	puts, deletes, err := s.applyDiff(changes, best)
	metrics.ObserveStoreOp("coins", "apply_diff", err, started)
	if err != nil {
		return err
	}
	metrics.AddBatchKeys("coins", puts, deletes)

	log.Coins.Debug().
		Int("changed_txs", len(changes)).
		Str("best_block", best.String()).
		Msg("applied coin diff")
	return nil
}

func (s *Store) applyDiff(changes map[types.Hash]*Coins, best types.Hash) (puts, deletes int, _ error) {
	batch := s.db.NewBatch()
	for txid, coins := range changes {
		var prior map[types.Hash]struct{}
		if s.scriptIndex {
			p, err := s.GetCoins(txid)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return 0, 0, fmt.Errorf("apply diff: read prior state of %s: %w", txid, err)
			}
			if p != nil {
				prior = p.scriptHashes()
			}
		}

		var next map[types.Hash]struct{}
		if coins == nil || coins.IsEmpty() {
			if err := batch.Delete(coinKey(txid)); err != nil {
				return 0, 0, fmt.Errorf("apply diff: %w", err)
			}
			deletes++
		} else {
			data, err := encodeCoins(coins)
			if err != nil {
				return 0, 0, fmt.Errorf("apply diff: %w", err)
			}
			if err := batch.Put(coinKey(txid), data); err != nil {
				return 0, 0, fmt.Errorf("apply diff: %w", err)
			}
			puts++
			if s.scriptIndex {
				next = coins.scriptHashes()
			}
		}

		if s.scriptIndex {
			// Index pairs leaving the set are deleted, pairs entering it
			// are written; unchanged pairs are left alone.
			for sh := range prior {
				if _, still := next[sh]; !still {
					if err := batch.Delete(scriptIndexKey(sh, txid)); err != nil {
						return 0, 0, fmt.Errorf("apply diff: %w", err)
					}
					deletes++
				}
			}
			for sh := range next {
				if _, had := prior[sh]; !had {
					if err := batch.Put(scriptIndexKey(sh, txid), []byte{}); err != nil {
						return 0, 0, fmt.Errorf("apply diff: %w", err)
					}
					puts++
				}
			}
		}
	}

	if err := batch.Put(keyBestBlock, best[:]); err != nil {
		return 0, 0, fmt.Errorf("apply diff: %w", err)
	}
	puts++

	if err := batch.Commit(); err != nil {
		return 0, 0, fmt.Errorf("apply diff commit: %w", err)
	}
	return puts, deletes, nil
}
