package storage

import (
	"bytes"
	"errors"
	"testing"
)

// testDB runs the shared test suite against a DB implementation.
func testDB(t *testing.T, db DB) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		err := db.Put([]byte("key1"), []byte("value1"))
		if err != nil {
			t.Fatalf("Put() error: %v", err)
		}

		val, err := db.Get([]byte("key1"))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !bytes.Equal(val, []byte("value1")) {
			t.Errorf("Get() = %q, want %q", val, "value1")
		}
	})

	t.Run("GetNonexistent", func(t *testing.T) {
		_, err := db.Get([]byte("nonexistent"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() for missing key = %v, want ErrNotFound", err)
		}
	})

	t.Run("Has", func(t *testing.T) {
		db.Put([]byte("exists"), []byte("yes"))

		ok, err := db.Has([]byte("exists"))
		if err != nil {
			t.Fatalf("Has() error: %v", err)
		}
		if !ok {
			t.Error("Has() = false for existing key")
		}

		ok, err = db.Has([]byte("missing"))
		if err != nil {
			t.Fatalf("Has() error: %v", err)
		}
		if ok {
			t.Error("Has() = true for missing key")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		db.Put([]byte("ow"), []byte("first"))
		db.Put([]byte("ow"), []byte("second"))

		val, err := db.Get([]byte("ow"))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !bytes.Equal(val, []byte("second")) {
			t.Errorf("Get() after overwrite = %q, want %q", val, "second")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db.Put([]byte("del"), []byte("value"))

		if err := db.Delete([]byte("del")); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}

		if _, err := db.Get([]byte("del")); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after Delete() = %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		// Deleting a nonexistent key should not error.
		if err := db.Delete([]byte("never-existed")); err != nil {
			t.Errorf("Delete() nonexistent key error: %v", err)
		}
	})

	t.Run("BinaryData", func(t *testing.T) {
		key := []byte{0x00, 0x01, 0xFF}
		value := make([]byte, 256)
		for i := range value {
			value[i] = byte(i)
		}

		if err := db.Put(key, value); err != nil {
			t.Fatalf("Put() binary error: %v", err)
		}

		got, err := db.Get(key)
		if err != nil {
			t.Fatalf("Get() binary error: %v", err)
		}
		if !bytes.Equal(got, value) {
			t.Error("binary roundtrip failed")
		}
	})

	t.Run("ForEachOrdered", func(t *testing.T) {
		db.Put([]byte("fe/c"), []byte("3"))
		db.Put([]byte("fe/a"), []byte("1"))
		db.Put([]byte("fe/b"), []byte("2"))
		db.Put([]byte("other/x"), []byte("4"))

		var keys []string
		err := db.ForEach([]byte("fe/"), func(key, value []byte) error {
			keys = append(keys, string(key))
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach() error: %v", err)
		}
		if len(keys) != 3 {
			t.Fatalf("ForEach(fe/) count = %d, want 3", len(keys))
		}
		for i, want := range []string{"fe/a", "fe/b", "fe/c"} {
			if keys[i] != want {
				t.Errorf("keys[%d] = %q, want %q", i, keys[i], want)
			}
		}
	})

	t.Run("ForEachEarlyStop", func(t *testing.T) {
		db.Put([]byte("es/a"), []byte("1"))
		db.Put([]byte("es/b"), []byte("2"))

		stop := errors.New("stop")
		var count int
		err := db.ForEach([]byte("es/"), func(key, value []byte) error {
			count++
			return stop
		})
		if !errors.Is(err, stop) {
			t.Errorf("ForEach() = %v, want stop sentinel", err)
		}
		if count != 1 {
			t.Errorf("callback ran %d times, want 1", count)
		}
	})

	t.Run("BatchCommit", func(t *testing.T) {
		db.Put([]byte("bat/gone"), []byte("old"))

		batch := db.NewBatch()
		batch.Put([]byte("bat/a"), []byte("1"))
		batch.Put([]byte("bat/b"), []byte("2"))
		batch.Delete([]byte("bat/gone"))

		// Nothing is visible before commit.
		if ok, _ := db.Has([]byte("bat/a")); ok {
			t.Error("batch write visible before Commit()")
		}

		if err := batch.Commit(); err != nil {
			t.Fatalf("Commit() error: %v", err)
		}

		for _, k := range []string{"bat/a", "bat/b"} {
			if ok, _ := db.Has([]byte(k)); !ok {
				t.Errorf("key %q missing after Commit()", k)
			}
		}
		if ok, _ := db.Has([]byte("bat/gone")); ok {
			t.Error("deleted key still present after Commit()")
		}
	})

	t.Run("IteratorSnapshot", func(t *testing.T) {
		db.Put([]byte("it/a"), []byte("1"))
		db.Put([]byte("it/b"), []byte("22"))

		it, err := db.NewIterator([]byte("it/"))
		if err != nil {
			t.Fatalf("NewIterator() error: %v", err)
		}
		defer it.Close()

		// A write after iterator creation must not be observed.
		db.Put([]byte("it/c"), []byte("3"))

		var keys []string
		var sizes []int
		for ; it.Valid(); it.Next() {
			keys = append(keys, string(it.Key()))
			sizes = append(sizes, it.ValueSize())
			val, err := it.Value()
			if err != nil {
				t.Fatalf("Value() error: %v", err)
			}
			if len(val) != sizes[len(sizes)-1] {
				t.Errorf("ValueSize() = %d, len(Value()) = %d", sizes[len(sizes)-1], len(val))
			}
		}

		if len(keys) != 2 {
			t.Fatalf("iterator saw %d keys, want 2 (snapshot)", len(keys))
		}
		if keys[0] != "it/a" || keys[1] != "it/b" {
			t.Errorf("iterator keys = %v, want [it/a it/b]", keys)
		}
		if sizes[0] != 1 || sizes[1] != 2 {
			t.Errorf("value sizes = %v, want [1 2]", sizes)
		}
	})
}

func TestMemoryDB(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	testDB(t, db)
}

func TestBadgerDB(t *testing.T) {
	dir := t.TempDir()
	db, err := NewBadger(dir, 0)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()
	testDB(t, db)
}

func TestBadgerDB_Persistence(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewBadger(dir, 0)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	db1.Put([]byte("persist"), []byte("data"))
	db1.Close()

	db2, err := NewBadger(dir, 0)
	if err != nil {
		t.Fatalf("NewBadger() reopen error: %v", err)
	}
	defer db2.Close()

	val, err := db2.Get([]byte("persist"))
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if !bytes.Equal(val, []byte("data")) {
		t.Errorf("persisted value = %q, want %q", val, "data")
	}
}

func TestBadgerDB_BatchPersistence(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewBadger(dir, 0)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	batch := db1.NewBatch()
	batch.Put([]byte("k1"), []byte("v1"))
	batch.Put([]byte("k2"), []byte("v2"))
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	db1.Close()

	db2, err := NewBadger(dir, 0)
	if err != nil {
		t.Fatalf("NewBadger() reopen error: %v", err)
	}
	defer db2.Close()

	for k, want := range map[string]string{"k1": "v1", "k2": "v2"} {
		val, err := db2.Get([]byte(k))
		if err != nil {
			t.Fatalf("Get(%q) after reopen error: %v", k, err)
		}
		if string(val) != want {
			t.Errorf("Get(%q) = %q, want %q", k, val, want)
		}
	}
}
