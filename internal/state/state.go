// Package state opens the chainstate layer: one database carved into the
// per-store namespaces, with the stores wired on top.
package state

import (
	"fmt"
	"path/filepath"

	"github.com/emberchain/chainstate/config"
	"github.com/emberchain/chainstate/internal/blockmeta"
	"github.com/emberchain/chainstate/internal/coindb"
	"github.com/emberchain/chainstate/internal/ledger"
	"github.com/emberchain/chainstate/internal/log"
	"github.com/emberchain/chainstate/internal/storage"
)

// Namespace prefixes. Each store sees only its own slice of the key space,
// so no prefix scan ever crosses stores.
var (
	nsCoins     = []byte("C")
	nsBlockMeta = []byte("M")
	nsBalances  = []byte("B")
	nsRates     = []byte("R")
)

// State bundles the opened stores. The embedding node owns the lifecycle:
// Open once, Close once.
type State struct {
	root storage.DB

	Coins     *coindb.Store
	BlockMeta *blockmeta.Store
	Balances  *ledger.BalanceView
	Rates     *ledger.RewardRateView
}

// Open validates the configuration, opens the backing database (on disk or
// in memory), optionally wipes it, and wires the stores. The tx-index flag
// is seeded from the configuration only when the store has never recorded
// it; an existing store keeps its stored value, so inspection tools opening
// with defaults never rewrite it. Toggling the index on a live store goes
// through BlockMeta.SetFlag explicitly.
func Open(cfg *config.Config) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	var root storage.DB
	if cfg.InMemory {
		root = storage.NewMemory()
	} else {
		path := filepath.Join(cfg.DataDir, "chainstate")
		db, err := storage.NewBadger(path, cfg.CacheMB)
		if err != nil {
			return nil, fmt.Errorf("open state: %w", err)
		}
		root = db
	}

	coinsDB := storage.NewPrefixDB(root, nsCoins)
	metaDB := storage.NewPrefixDB(root, nsBlockMeta)
	balanceDB := storage.NewPrefixDB(root, nsBalances)
	rateDB := storage.NewPrefixDB(root, nsRates)

	if cfg.Wipe {
		for _, ns := range []*storage.PrefixDB{coinsDB, metaDB, balanceDB, rateDB} {
			if err := ns.DeleteAll(); err != nil {
				root.Close()
				return nil, fmt.Errorf("wipe state: %w", err)
			}
		}
		log.Storage.Info().Msg("wiped existing chainstate")
	}

	meta := blockmeta.NewStore(metaDB)
	seeded, err := meta.HasFlag(blockmeta.FlagTxIndex)
	if err != nil {
		root.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}
	if !seeded {
		if err := meta.SetFlag(blockmeta.FlagTxIndex, cfg.TxIndex); err != nil {
			root.Close()
			return nil, fmt.Errorf("open state: %w", err)
		}
	}

	policy := ledger.LookupExact
	if cfg.RewardRateLookup == config.RewardRateLookupFloor {
		policy = ledger.LookupFloor
	}

	s := &State{
		root:      root,
		Coins:     coindb.NewStore(coinsDB, cfg.ScriptIndex),
		BlockMeta: meta,
		Balances:  ledger.NewBalanceView(balanceDB),
		Rates:     ledger.NewRewardRateView(rateDB, policy),
	}

	log.Storage.Info().
		Bool("in_memory", cfg.InMemory).
		Bool("tx_index", cfg.TxIndex).
		Bool("script_index", cfg.ScriptIndex).
		Msg("chainstate opened")
	return s, nil
}

// Close releases the backing database.
func (s *State) Close() error {
	return s.root.Close()
}
