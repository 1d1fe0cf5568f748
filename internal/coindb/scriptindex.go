package coindb

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/emberchain/chainstate/internal/log"
	"github.com/emberchain/chainstate/internal/metrics"
	"github.com/emberchain/chainstate/pkg/types"
)

// ErrIndexInconsistent is returned when the script index and the coin set
// disagree. The remedy is DropScriptIndex + RebuildScriptIndex, never an
// in-place patch.
var ErrIndexInconsistent = errors.New("coindb: script index inconsistent with coin set")

// scriptIndexKey builds an index key: "s/" + scripthash(32) + txid(32).
func scriptIndexKey(scriptHash, txid types.Hash) []byte {
	key := make([]byte, len(prefixScript)+2*types.HashSize)
	copy(key, prefixScript)
	copy(key[len(prefixScript):], scriptHash[:])
	copy(key[len(prefixScript)+types.HashSize:], txid[:])
	return key
}

// GetCoinsByScript returns the txids that currently own at least one
// unspent output locked to the given script hash. Meaningful only while
// the index is enabled and consistent.
func (s *Store) GetCoinsByScript(scriptHash types.Hash) ([]types.Hash, error) {
	prefix := make([]byte, len(prefixScript)+types.HashSize)
	copy(prefix, prefixScript)
	copy(prefix[len(prefixScript):], scriptHash[:])

	var txids []types.Hash
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		if len(key) != len(prefixScript)+2*types.HashSize {
			return fmt.Errorf("%w: malformed script index key of %d bytes", ErrCorruptCoins, len(key))
		}
		var txid types.Hash
		copy(txid[:], key[len(prefixScript)+types.HashSize:])
		txids = append(txids, txid)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan script index: %w", err)
	}
	return txids, nil
}

// RebuildScriptIndex regenerates the whole script index from a fresh scan
// of the coin set: stale entries are removed and every (script, txid) pair
// implied by the current entries is written, in one atomic batch.
func (s *Store) RebuildScriptIndex() error {
	started := time.Now()
	batch := s.db.NewBatch()

	var stale int
	err := s.db.ForEach(prefixScript, func(key, _ []byte) error {
		stale++
		return batch.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("rebuild script index: clear: %w", err)
	}

	var entries int
	err = s.db.ForEach(prefixCoins, func(key, value []byte) error {
		if len(key) != len(prefixCoins)+types.HashSize {
			return fmt.Errorf("%w: malformed coin key of %d bytes", ErrCorruptCoins, len(key))
		}
		var txid types.Hash
		copy(txid[:], key[len(prefixCoins):])

		coins, err := decodeCoins(value)
		if err != nil {
			return fmt.Errorf("coins %s: %w", txid, err)
		}
		for sh := range coins.scriptHashes() {
			if err := batch.Put(scriptIndexKey(sh, txid), []byte{}); err != nil {
				return err
			}
			entries++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuild script index: %w", err)
	}

	err = batch.Commit()
	metrics.ObserveStoreOp("coins", "rebuild_script_index", err, started)
	if err != nil {
		return fmt.Errorf("rebuild script index commit: %w", err)
	}
	metrics.AddBatchKeys("coins", entries, stale)

	log.Coins.Info().
		Int("entries", entries).
		Dur("duration", time.Since(started)).
		Msg("rebuilt script index")
	return nil
}

// DropScriptIndex deletes the entire script index namespace in one batch.
func (s *Store) DropScriptIndex() error {
	started := time.Now()
	batch := s.db.NewBatch()

	var removed int
	err := s.db.ForEach(prefixScript, func(key, _ []byte) error {
		removed++
		return batch.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("drop script index: %w", err)
	}

	err = batch.Commit()
	metrics.ObserveStoreOp("coins", "drop_script_index", err, started)
	if err != nil {
		return fmt.Errorf("drop script index commit: %w", err)
	}
	metrics.AddBatchKeys("coins", 0, removed)

	log.Coins.Info().Int("entries", removed).Msg("dropped script index")
	return nil
}

// VerifyScriptIndex compares the stored index against the pairs implied by
// a full coin-set scan. Any missing or extra entry yields
// ErrIndexInconsistent; the caller should rebuild.
func (s *Store) VerifyScriptIndex() error {
	started := time.Now()
	err := s.verifyScriptIndex()
	metrics.ObserveStoreOp("coins", "verify_script_index", err, started)
	return err
}

func (s *Store) verifyScriptIndex() error {
	expected := make(map[string]struct{})
	err := s.db.ForEach(prefixCoins, func(key, value []byte) error {
		if len(key) != len(prefixCoins)+types.HashSize {
			return fmt.Errorf("%w: malformed coin key of %d bytes", ErrCorruptCoins, len(key))
		}
		var txid types.Hash
		copy(txid[:], key[len(prefixCoins):])

		coins, err := decodeCoins(value)
		if err != nil {
			return fmt.Errorf("coins %s: %w", txid, err)
		}
		for sh := range coins.scriptHashes() {
			expected[string(scriptIndexKey(sh, txid))] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("verify script index: %w", err)
	}

	var extra []byte
	err = s.db.ForEach(prefixScript, func(key, _ []byte) error {
		k := string(key)
		if _, ok := expected[k]; !ok {
			extra = bytes.Clone(key)
			return ErrIndexInconsistent
		}
		delete(expected, k)
		return nil
	})
	if errors.Is(err, ErrIndexInconsistent) {
		return fmt.Errorf("%w: entry %x not implied by any coin", ErrIndexInconsistent, extra)
	}
	if err != nil {
		return fmt.Errorf("verify script index: %w", err)
	}

	if len(expected) != 0 {
		return fmt.Errorf("%w: %d implied entries missing from index", ErrIndexInconsistent, len(expected))
	}
	return nil
}
