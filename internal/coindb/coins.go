// Package coindb implements the canonical unspent-output store: per-txid
// coin entries, the best-block pointer, and the script-hash secondary index.
package coindb

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/emberchain/chainstate/pkg/crypto"
	"github.com/emberchain/chainstate/pkg/types"
)

// ErrCorruptCoins marks a stored coin entry that failed to decode. This is
// on-disk corruption of consensus data and is never skipped.
var ErrCorruptCoins = errors.New("coindb: corrupt coin entry")

// Output is one unspent output of a transaction.
type Output struct {
	Value  uint64       `json:"value"`
	Script types.Script `json:"script"`
}

// Coins holds the still-unspent outputs of one transaction, keyed by output
// index. An entry with no outputs left is erased from the store; partial
// spends keep the entry with the spent slots removed.
type Coins struct {
	Outputs  map[uint32]*Output `json:"outputs"`
	Height   uint64             `json:"height"`
	Coinbase bool               `json:"coinbase,omitempty"`
}

// IsEmpty reports whether no unspent outputs remain.
func (c *Coins) IsEmpty() bool {
	return len(c.Outputs) == 0
}

// Clone returns a deep copy.
func (c *Coins) Clone() *Coins {
	out := &Coins{
		Outputs:  make(map[uint32]*Output, len(c.Outputs)),
		Height:   c.Height,
		Coinbase: c.Coinbase,
	}
	for i, o := range c.Outputs {
		cp := *o
		cp.Script.Data = append([]byte(nil), o.Script.Data...)
		out.Outputs[i] = &cp
	}
	return out
}

// scriptHashes returns the set of script hashes owning the entry's outputs.
func (c *Coins) scriptHashes() map[types.Hash]struct{} {
	set := make(map[types.Hash]struct{}, len(c.Outputs))
	for _, o := range c.Outputs {
		set[crypto.ScriptHash(o.Script)] = struct{}{}
	}
	return set
}

func encodeCoins(c *Coins) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("coins marshal: %w", err)
	}
	return data, nil
}

func decodeCoins(data []byte) (*Coins, error) {
	var c Coins
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCoins, err)
	}
	return &c, nil
}
