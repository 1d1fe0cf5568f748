// Package tx defines the transaction model the state layer reads when
// deriving balance updates. Validation and signing live with the consensus
// and wallet layers; only the fields consumed here are modeled.
package tx

import (
	"encoding/binary"

	"github.com/emberchain/chainstate/pkg/crypto"
	"github.com/emberchain/chainstate/pkg/types"
)

// Transaction represents a blockchain transaction.
type Transaction struct {
	Version  uint32   `json:"version"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint64   `json:"locktime"`
}

// Input references a UTXO being spent.
type Input struct {
	PrevOut types.Outpoint `json:"prevout"`
}

// Output defines a new UTXO.
type Output struct {
	Value  uint64       `json:"value"`
	Script types.Script `json:"script"`
}

// IsCoinbase reports whether the transaction creates new coins: a single
// input spending the zero outpoint.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].PrevOut.IsZero()
}

// Hash computes the transaction ID (BLAKE3 hash of the canonical bytes).
func (t *Transaction) Hash() types.Hash {
	return crypto.Hash(t.canonicalBytes())
}

// canonicalBytes returns the byte representation hashed for the txid.
// Format: version(4) | input_count(4) | [prevout(36)]... | output_count(4) |
// [value(8) + script_type(1) + script_data_len(4) + script_data]... | locktime(8)
func (t *Transaction) canonicalBytes() []byte {
	var buf []byte

	buf = binary.LittleEndian.AppendUint32(buf, t.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = append(buf, byte(out.Script.Type))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.Script.Data)))
		buf = append(buf, out.Script.Data...)
	}

	buf = binary.LittleEndian.AppendUint64(buf, t.LockTime)
	return buf
}
