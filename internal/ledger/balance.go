// Package ledger maintains the height-indexed balance history and the
// reward-rate snapshots. Both are auxiliary to the coin set: they are
// written through their own atomic units, deliberately outside the coin
// store's batch, and may lag the chain state by one connection event after
// a crash.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/emberchain/chainstate/internal/coindb"
	"github.com/emberchain/chainstate/internal/log"
	"github.com/emberchain/chainstate/internal/metrics"
	"github.com/emberchain/chainstate/internal/storage"
	"github.com/emberchain/chainstate/pkg/tx"
	"github.com/emberchain/chainstate/pkg/types"
)

// Key prefixes for the balance ledger.
var (
	prefixBalance  = []byte("a/") // a/<addr(20)><height(8)> -> amount(8)
	keyFlushHeight = []byte("h/flushed")
)

// CoinReader resolves spent outputs at connection time. The coin store's
// view before the diff is applied satisfies it.
type CoinReader interface {
	GetCoins(txid types.Hash) (*coindb.Coins, error)
}

// BalanceView is a write-back cache over the persisted per-(address,
// height) balance records. The cache is exclusively owned by this view;
// ApplyTransaction folds deltas into it and Flush persists the dirty
// subset at a height.
type BalanceView struct {
	db    storage.DB
	cache map[types.Address]uint64
	dirty map[types.Address]struct{}
}

// NewBalanceView creates a balance view over the given database.
func NewBalanceView(db storage.DB) *BalanceView {
	return &BalanceView{
		db:    db,
		cache: make(map[types.Address]uint64),
		dirty: make(map[types.Address]struct{}),
	}
}

// balanceKey builds a record key: "a/" + addr(20) + height(8).
// BigEndian heights make byte order equal numeric order within an address.
func balanceKey(addr types.Address, height uint64) []byte {
	key := make([]byte, len(prefixBalance)+types.AddressSize+8)
	copy(key, prefixBalance)
	copy(key[len(prefixBalance):], addr[:])
	binary.BigEndian.PutUint64(key[len(prefixBalance)+types.AddressSize:], height)
	return key
}

// Balance returns the address's balance as of the given height: the cached
// value if the address is warm, otherwise the newest persisted record at or
// before the height, otherwise zero. A warm address answers with its
// current balance regardless of the queried height; historic queries go
// through a fresh view, whose cache is cold.
func (v *BalanceView) Balance(addr types.Address, height uint64) (uint64, error) {
	if amount, ok := v.cache[addr]; ok {
		return amount, nil
	}
	return v.persistedBalance(addr, height)
}

// persistedBalance scans the address's records and keeps the last one with
// height <= the query. Records are BigEndian-keyed, so the scan sees them
// in ascending height order.
func (v *BalanceView) persistedBalance(addr types.Address, height uint64) (uint64, error) {
	prefix := make([]byte, len(prefixBalance)+types.AddressSize)
	copy(prefix, prefixBalance)
	copy(prefix[len(prefixBalance):], addr[:])

	var amount uint64
	errStop := errors.New("stop")
	err := v.db.ForEach(prefix, func(key, value []byte) error {
		if len(key) != len(prefix)+8 {
			return fmt.Errorf("%w: malformed balance key of %d bytes", ErrCorruptLedger, len(key))
		}
		h := binary.BigEndian.Uint64(key[len(prefix):])
		if h > height {
			return errStop
		}
		if len(value) != 8 {
			return fmt.Errorf("%w: balance record is %d bytes", ErrCorruptLedger, len(value))
		}
		amount = binary.BigEndian.Uint64(value)
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return 0, fmt.Errorf("balance scan %s: %w", addr, err)
	}
	return amount, nil
}

// ApplyTransaction folds the transaction's net per-address deltas into the
// cache. Inputs are resolved through view — the coin store's state at
// connection time — and subtract; outputs add. Nothing is persisted until
// Flush.
func (v *BalanceView) ApplyTransaction(t *tx.Transaction, view CoinReader, height uint64) error {
	deltas := make(map[types.Address]int64)

	if !t.IsCoinbase() {
		for _, in := range t.Inputs {
			coins, err := view.GetCoins(in.PrevOut.TxID)
			if err != nil {
				return fmt.Errorf("resolve input %s: %w", in.PrevOut, err)
			}
			out, ok := coins.Outputs[in.PrevOut.Index]
			if !ok {
				return fmt.Errorf("resolve input %s: output already spent", in.PrevOut)
			}
			if addr, ok := out.Script.Address(); ok {
				deltas[addr] -= int64(out.Value)
			}
		}
	}

	for _, out := range t.Outputs {
		if addr, ok := out.Script.Address(); ok {
			deltas[addr] += int64(out.Value)
		}
	}

	for addr, delta := range deltas {
		if delta == 0 {
			continue
		}
		current, ok := v.cache[addr]
		if !ok {
			persisted, err := v.persistedBalance(addr, height)
			if err != nil {
				return err
			}
			current = persisted
		}
		next := int64(current) + delta
		if next < 0 {
			return fmt.Errorf("balance underflow for %s at height %d: %d%+d", addr, height, current, delta)
		}
		v.cache[addr] = uint64(next)
		v.dirty[addr] = struct{}{}
	}
	return nil
}

// Flush persists one record per address whose balance changed since the
// last flush, keyed at the given height, plus the flush-height marker, in
// one atomic batch. Cached values stay warm; dirty marks are cleared.
func (v *BalanceView) Flush(height uint64) error {
	started := time.Now()
	batch := v.db.NewBatch()

	for addr := range v.dirty {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], v.cache[addr])
		if err := batch.Put(balanceKey(addr, height), buf[:]); err != nil {
			return fmt.Errorf("flush balance: %w", err)
		}
	}

	var hBuf [8]byte
	binary.BigEndian.PutUint64(hBuf[:], height)
	if err := batch.Put(keyFlushHeight, hBuf[:]); err != nil {
		return fmt.Errorf("flush balance: %w", err)
	}

	err := batch.Commit()
	metrics.ObserveStoreOp("ledger", "flush_balances", err, started)
	if err != nil {
		return fmt.Errorf("balance flush commit: %w", err)
	}
	metrics.AddBatchKeys("ledger", len(v.dirty)+1, 0)

	log.Ledger.Debug().
		Int("addresses", len(v.dirty)).
		Uint64("height", height).
		Msg("flushed balances")

	v.dirty = make(map[types.Address]struct{})
	return nil
}

// ClearCache discards all unflushed cache state. Used when rolling back a
// tentative chain extension so abandoned deltas are never persisted.
func (v *BalanceView) ClearCache() {
	v.cache = make(map[types.Address]uint64)
	v.dirty = make(map[types.Address]struct{})
}

// FlushedHeight returns the height of the last flush, or zero if the
// ledger was never flushed. Startup compares this against the chain tip to
// detect the crash window between a coin diff and the balance flush.
func (v *BalanceView) FlushedHeight() (uint64, error) {
	data, err := v.db.Get(keyFlushHeight)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read flush height: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: flush height is %d bytes", ErrCorruptLedger, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
