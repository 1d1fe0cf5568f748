package blockmeta

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/emberchain/chainstate/internal/log"
	"github.com/emberchain/chainstate/internal/metrics"
	"github.com/emberchain/chainstate/internal/storage"
	"github.com/emberchain/chainstate/pkg/types"
)

// Key prefixes and singleton keys for the block metadata store.
var (
	prefixFileInfo   = []byte("f/") // f/<file(4)> -> FileInfo JSON
	prefixBlockIndex = []byte("b/") // b/<hash(32)> -> IndexEntry JSON
	prefixFlag       = []byte("g/") // g/<name> -> 0x00/0x01
	prefixTxPos      = []byte("t/") // t/<txid(32)> -> TxPosition JSON
	keyLastFile      = []byte("l/last")
)

// Well-known flag names.
const (
	FlagReindexing = "reindexing"
	FlagTxIndex    = "txindex"
)

// Store persists block metadata to a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a block metadata store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func fileInfoKey(file uint32) []byte {
	key := make([]byte, len(prefixFileInfo)+4)
	copy(key, prefixFileInfo)
	binary.BigEndian.PutUint32(key[len(prefixFileInfo):], file)
	return key
}

func blockIndexKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixBlockIndex)+types.HashSize)
	copy(key, prefixBlockIndex)
	copy(key[len(prefixBlockIndex):], hash[:])
	return key
}

func flagKey(name string) []byte {
	return append(append([]byte(nil), prefixFlag...), name...)
}

func txPosKey(txid types.Hash) []byte {
	key := make([]byte, len(prefixTxPos)+types.HashSize)
	copy(key, prefixTxPos)
	copy(key[len(prefixTxPos):], txid[:])
	return key
}

// FileInfoUpdate pairs a file number with its new accounting record.
type FileInfoUpdate struct {
	File uint32
	Info *FileInfo
}

// TxPositionUpdate pairs a txid with its on-disk position.
type TxPositionUpdate struct {
	TxID types.Hash
	Pos  TxPosition
}

// WriteFileInfoAndIndex writes file accounting, the last-file pointer, and
// block-index entries as one atomic batch, so file accounting and the
// block tree never diverge.
func (s *Store) WriteFileInfoAndIndex(fileInfos []FileInfoUpdate, lastFile uint32, entries []*IndexEntry) error {
	started := time.Now()
	batch := s.db.NewBatch()

	for _, fi := range fileInfos {
		data, err := encodeRecord(fi.Info)
		if err != nil {
			return err
		}
		if err := batch.Put(fileInfoKey(fi.File), data); err != nil {
			return fmt.Errorf("write file info: %w", err)
		}
	}

	var lastBuf [4]byte
	binary.BigEndian.PutUint32(lastBuf[:], lastFile)
	if err := batch.Put(keyLastFile, lastBuf[:]); err != nil {
		return fmt.Errorf("write last file: %w", err)
	}

	for _, e := range entries {
		data, err := encodeRecord(e)
		if err != nil {
			return err
		}
		if err := batch.Put(blockIndexKey(e.Hash), data); err != nil {
			return fmt.Errorf("write block index: %w", err)
		}
	}

	err := batch.Commit()
	metrics.ObserveStoreOp("blockmeta", "write_file_info_and_index", err, started)
	if err != nil {
		return fmt.Errorf("block metadata commit: %w", err)
	}
	metrics.AddBatchKeys("blockmeta", len(fileInfos)+len(entries)+1, 0)

	log.BlockMeta.Debug().
		Int("file_infos", len(fileInfos)).
		Int("index_entries", len(entries)).
		Uint32("last_file", lastFile).
		Msg("wrote block metadata batch")
	return nil
}

// ReadFileInfo reads the accounting record for a file.
// Returns storage.ErrNotFound if the file has no record.
func (s *Store) ReadFileInfo(file uint32) (*FileInfo, error) {
	data, err := s.db.Get(fileInfoKey(file))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("read file info: %w", err)
	}
	var fi FileInfo
	if err := decodeRecord(data, &fi); err != nil {
		return nil, fmt.Errorf("file %d: %w", file, err)
	}
	return &fi, nil
}

// ReadLastFile returns the current active block file number.
// Returns storage.ErrNotFound if none was ever written.
func (s *Store) ReadLastFile() (uint32, error) {
	data, err := s.db.Get(keyLastFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("read last file: %w", err)
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("%w: last file pointer is %d bytes", ErrCorruptRecord, len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

// SetFlag stores a named boolean feature toggle.
func (s *Store) SetFlag(name string, value bool) error {
	v := []byte{0x00}
	if value {
		v[0] = 0x01
	}
	if err := s.db.Put(flagKey(name), v); err != nil {
		return fmt.Errorf("set flag %q: %w", name, err)
	}
	return nil
}

// HasFlag reports whether the named flag was ever written, without
// reading its value.
func (s *Store) HasFlag(name string) (bool, error) {
	return s.db.Has(flagKey(name))
}

// GetFlag reads a named flag. Missing flags default to false.
func (s *Store) GetFlag(name string) (bool, error) {
	data, err := s.db.Get(flagKey(name))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get flag %q: %w", name, err)
	}
	if len(data) != 1 {
		return false, fmt.Errorf("%w: flag %q is %d bytes", ErrCorruptRecord, name, len(data))
	}
	return data[0] != 0x00, nil
}

// WriteTxPositions stores transaction positions in one atomic batch.
// Only meaningful while the txindex flag is set.
func (s *Store) WriteTxPositions(list []TxPositionUpdate) error {
	started := time.Now()
	batch := s.db.NewBatch()

	for _, u := range list {
		data, err := encodeRecord(&u.Pos)
		if err != nil {
			return err
		}
		if err := batch.Put(txPosKey(u.TxID), data); err != nil {
			return fmt.Errorf("write tx position: %w", err)
		}
	}

	err := batch.Commit()
	metrics.ObserveStoreOp("blockmeta", "write_tx_positions", err, started)
	if err != nil {
		return fmt.Errorf("tx positions commit: %w", err)
	}
	metrics.AddBatchKeys("blockmeta", len(list), 0)
	return nil
}

// ReadTxPosition looks up a transaction's on-disk position. A miss proves
// nothing unless the txindex flag is confirmed on: entries may be stale or
// absent after the feature was toggled.
func (s *Store) ReadTxPosition(txid types.Hash) (*TxPosition, error) {
	data, err := s.db.Get(txPosKey(txid))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("read tx position: %w", err)
	}
	var pos TxPosition
	if err := decodeRecord(data, &pos); err != nil {
		return nil, fmt.Errorf("tx %s: %w", txid, err)
	}
	return &pos, nil
}
