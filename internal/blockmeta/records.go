// Package blockmeta persists block-file accounting, feature flags, the
// optional transaction-position index, and the block-index tree.
package blockmeta

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/emberchain/chainstate/pkg/types"
)

// ErrCorruptRecord marks a stored block-metadata value that failed to
// decode. Surfaced to the caller, never skipped.
var ErrCorruptRecord = errors.New("blockmeta: corrupt record")

// FileInfo is the accounting record for one block-storage file.
type FileInfo struct {
	Blocks      uint32 `json:"blocks"`
	Size        uint64 `json:"size"`
	UndoSize    uint64 `json:"undo_size"`
	HeightFirst uint64 `json:"height_first"`
	HeightLast  uint64 `json:"height_last"`
	TimeFirst   int64  `json:"time_first"`
	TimeLast    int64  `json:"time_last"`
}

// AddBlock folds one block into the file's accounting.
func (fi *FileInfo) AddBlock(height uint64, timestamp int64) {
	if fi.Blocks == 0 || height < fi.HeightFirst {
		fi.HeightFirst = height
	}
	if fi.Blocks == 0 || timestamp < fi.TimeFirst {
		fi.TimeFirst = timestamp
	}
	fi.Blocks++
	if height > fi.HeightLast {
		fi.HeightLast = height
	}
	if timestamp > fi.TimeLast {
		fi.TimeLast = timestamp
	}
}

// BlockStatus holds validity and data-availability bits for a block.
type BlockStatus uint32

const (
	StatusValidHeader BlockStatus = 1 << iota
	StatusValidTree
	StatusValidChain
	StatusValidScripts
	StatusHaveData
	StatusHaveUndo
	StatusFailed
	StatusFailedChild
)

// IndexEntry is the persisted form of one block-index node.
type IndexEntry struct {
	Hash       types.Hash  `json:"hash"`
	Parent     types.Hash  `json:"parent"` // zero for genesis
	Height     uint64      `json:"height"`
	Status     BlockStatus `json:"status"`
	File       uint32      `json:"file"`
	DataPos    uint32      `json:"data_pos"`
	UndoPos    uint32      `json:"undo_pos"`
	Version    uint32      `json:"version"`
	MerkleRoot types.Hash  `json:"merkle_root"`
	Time       int64       `json:"time"`
	Bits       uint32      `json:"bits"`
	Nonce      uint64      `json:"nonce"`
}

// BlockNode is the in-memory block-index node. Nodes are linked by parent
// pointer into a tree rooted at genesis; LoadBlockIndex fills the fields
// and wires the links.
type BlockNode struct {
	Hash       types.Hash
	Parent     *BlockNode // nil for genesis
	Height     uint64
	Status     BlockStatus
	File       uint32
	DataPos    uint32
	UndoPos    uint32
	Version    uint32
	MerkleRoot types.Hash
	Time       int64
	Bits       uint32
	Nonce      uint64
}

// TxPosition locates a transaction on disk: block file, block offset, and
// the transaction's offset within the block (after the header).
type TxPosition struct {
	File     uint32 `json:"file"`
	BlockPos uint32 `json:"block_pos"`
	TxOffset uint32 `json:"tx_offset"`
}

func encodeRecord(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("blockmeta marshal: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return nil
}
