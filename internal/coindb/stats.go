package coindb

import (
	"time"

	"github.com/emberchain/chainstate/internal/log"
	"github.com/emberchain/chainstate/internal/metrics"
	"github.com/emberchain/chainstate/pkg/crypto"
	"github.com/emberchain/chainstate/pkg/types"
)

// Stats summarizes the coin set. Computing it costs one full scan.
type Stats struct {
	BestBlock      types.Hash `json:"best_block"`
	TxCount        uint64     `json:"tx_count"`
	OutputCount    uint64     `json:"output_count"`
	TotalAmount    uint64     `json:"total_amount"`
	SerializedSize uint64     `json:"serialized_size"`
	StateHash      types.Hash `json:"state_hash"`
}

// Stats scans the whole coin set and returns aggregate statistics plus a
// state hash: BLAKE3 over the best-block hash followed by every (key,
// value) pair in key order. Two stores with identical content produce
// identical hashes.
func (s *Store) Stats() (*Stats, error) {
	started := time.Now()
	stats, err := s.stats()
	metrics.ObserveStoreOp("coins", "stats", err, started)
	if err != nil {
		return nil, err
	}

	log.Coins.Debug().
		Uint64("tx_count", stats.TxCount).
		Uint64("output_count", stats.OutputCount).
		Uint64("total_amount", stats.TotalAmount).
		Dur("duration", time.Since(started)).
		Msg("coin set stats")
	return stats, nil
}

func (s *Store) stats() (*Stats, error) {
	best, err := s.BestBlock()
	if err != nil {
		return nil, err
	}

	cursor, err := s.Cursor()
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	stats := &Stats{BestBlock: best}
	hasher := crypto.NewHasher()
	hasher.Write(best[:])

	for ; cursor.Valid(); cursor.Next() {
		coins, err := cursor.Value()
		if err != nil {
			return nil, err
		}

		raw, err := cursor.it.Value()
		if err != nil {
			return nil, err
		}
		hasher.Write(cursor.it.Key())
		hasher.Write(raw)

		stats.TxCount++
		stats.OutputCount += uint64(len(coins.Outputs))
		stats.SerializedSize += uint64(cursor.ValueSize())
		for _, out := range coins.Outputs {
			stats.TotalAmount += out.Value
		}
	}

	stats.StateHash = crypto.SumHash(hasher)
	return stats, nil
}
