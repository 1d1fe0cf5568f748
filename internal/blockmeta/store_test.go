package blockmeta

import (
	"errors"
	"testing"

	"github.com/emberchain/chainstate/internal/storage"
	"github.com/emberchain/chainstate/pkg/crypto"
	"github.com/emberchain/chainstate/pkg/types"
)

func testMetaStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemory())
}

func hashOf(data string) types.Hash {
	return crypto.Hash([]byte(data))
}

func TestStore_WriteFileInfoAndIndex(t *testing.T) {
	s := testMetaStore(t)

	fi := &FileInfo{}
	fi.AddBlock(100, 1000)
	fi.AddBlock(101, 1060)

	entry := &IndexEntry{
		Hash:   hashOf("blk"),
		Height: 100,
		Status: StatusValidChain | StatusHaveData,
		File:   3,
	}

	err := s.WriteFileInfoAndIndex(
		[]FileInfoUpdate{{File: 3, Info: fi}},
		3,
		[]*IndexEntry{entry},
	)
	if err != nil {
		t.Fatalf("WriteFileInfoAndIndex() error: %v", err)
	}

	got, err := s.ReadFileInfo(3)
	if err != nil {
		t.Fatalf("ReadFileInfo() error: %v", err)
	}
	if got.Blocks != 2 || got.HeightFirst != 100 || got.HeightLast != 101 {
		t.Errorf("ReadFileInfo() = %+v, want 2 blocks over heights 100-101", got)
	}
	if got.TimeFirst != 1000 || got.TimeLast != 1060 {
		t.Errorf("time range = %d-%d, want 1000-1060", got.TimeFirst, got.TimeLast)
	}

	last, err := s.ReadLastFile()
	if err != nil {
		t.Fatalf("ReadLastFile() error: %v", err)
	}
	if last != 3 {
		t.Errorf("ReadLastFile() = %d, want 3", last)
	}
}

func TestStore_ReadFileInfoNotFound(t *testing.T) {
	s := testMetaStore(t)

	if _, err := s.ReadFileInfo(42); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ReadFileInfo() = %v, want ErrNotFound", err)
	}
	if _, err := s.ReadLastFile(); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ReadLastFile() on fresh store = %v, want ErrNotFound", err)
	}
}

func TestStore_Flags(t *testing.T) {
	s := testMetaStore(t)

	// Missing flags default to false.
	v, err := s.GetFlag(FlagTxIndex)
	if err != nil {
		t.Fatalf("GetFlag() error: %v", err)
	}
	if v {
		t.Error("unset flag should read false")
	}

	if err := s.SetFlag(FlagTxIndex, true); err != nil {
		t.Fatalf("SetFlag() error: %v", err)
	}
	if v, _ = s.GetFlag(FlagTxIndex); !v {
		t.Error("flag should read true after set")
	}

	if err := s.SetFlag(FlagTxIndex, false); err != nil {
		t.Fatalf("SetFlag() error: %v", err)
	}
	if v, _ = s.GetFlag(FlagTxIndex); v {
		t.Error("flag should read false after clear")
	}

	// Flags are independent.
	s.SetFlag(FlagReindexing, true)
	if v, _ = s.GetFlag(FlagTxIndex); v {
		t.Error("setting one flag must not affect another")
	}
}

func TestStore_TxPositions(t *testing.T) {
	s := testMetaStore(t)

	id := hashOf("tx")
	err := s.WriteTxPositions([]TxPositionUpdate{
		{TxID: id, Pos: TxPosition{File: 2, BlockPos: 4096, TxOffset: 180}},
		{TxID: hashOf("tx2"), Pos: TxPosition{File: 2, BlockPos: 8192, TxOffset: 81}},
	})
	if err != nil {
		t.Fatalf("WriteTxPositions() error: %v", err)
	}

	pos, err := s.ReadTxPosition(id)
	if err != nil {
		t.Fatalf("ReadTxPosition() error: %v", err)
	}
	if pos.File != 2 || pos.BlockPos != 4096 || pos.TxOffset != 180 {
		t.Errorf("ReadTxPosition() = %+v", pos)
	}

	if _, err := s.ReadTxPosition(hashOf("unknown")); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ReadTxPosition() miss = %v, want ErrNotFound", err)
	}
}

func TestFileInfo_AddBlock(t *testing.T) {
	var fi FileInfo
	fi.AddBlock(50, 500)
	fi.AddBlock(48, 480) // out-of-order heights still widen the range
	fi.AddBlock(52, 520)

	if fi.Blocks != 3 {
		t.Errorf("Blocks = %d, want 3", fi.Blocks)
	}
	if fi.HeightFirst != 48 || fi.HeightLast != 52 {
		t.Errorf("height range = %d-%d, want 48-52", fi.HeightFirst, fi.HeightLast)
	}
	if fi.TimeFirst != 480 || fi.TimeLast != 520 {
		t.Errorf("time range = %d-%d, want 480-520", fi.TimeFirst, fi.TimeLast)
	}
}

func TestStore_HasFlag(t *testing.T) {
	s := testMetaStore(t)

	has, err := s.HasFlag(FlagTxIndex)
	if err != nil {
		t.Fatalf("HasFlag() error: %v", err)
	}
	if has {
		t.Error("HasFlag() on fresh store = true, want false")
	}

	// A flag stored as false is still stored.
	if err := s.SetFlag(FlagTxIndex, false); err != nil {
		t.Fatalf("SetFlag() error: %v", err)
	}
	if has, _ = s.HasFlag(FlagTxIndex); !has {
		t.Error("HasFlag() after SetFlag(false) = false, want true")
	}
}
