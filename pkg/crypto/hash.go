// Package crypto provides the hashing primitives used by the chainstate stores.
package crypto

import (
	"github.com/zeebo/blake3"

	"github.com/emberchain/chainstate/pkg/types"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// ScriptHash hashes a script's canonical encoding. The script index keys
// on this value.
func ScriptHash(s types.Script) types.Hash {
	return Hash(s.Bytes())
}

// NewHasher returns an incremental BLAKE3 hasher. Used by the stats scan
// to fold the whole coin set into a single state hash.
func NewHasher() *blake3.Hasher {
	return blake3.New()
}

// SumHash finalizes an incremental hasher into a Hash.
func SumHash(h *blake3.Hasher) types.Hash {
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
