package core

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.etcd.io/bbolt"

	"fundb/utils"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AppendAssignsAscendingIDs(t *testing.T) {
	s := openTestStore(t)

	for i, v := range []string{"a", "b", "c"} {
		r, err := s.Append([]byte(v))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if r.ID != int64(i+1) {
			t.Errorf("expected id %d, got %d", i+1, r.ID)
		}
	}

	last, err := s.Last()
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last != 3 {
		t.Errorf("expected last 3, got %d", last)
	}
}

func TestStore_Get(t *testing.T) {
	s := openTestStore(t)

	appended, err := s.Append([]byte("hello"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	r, err := s.Get(appended.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(r.Value, []byte("hello")) {
		t.Errorf("expected value %q, got %q", "hello", r.Value)
	}
	if r.DigestHex() != appended.DigestHex() {
		t.Errorf("digest mismatch: %s != %s", r.DigestHex(), appended.DigestHex())
	}
	if !r.Verify() {
		t.Error("expected record to verify")
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_LastEmpty(t *testing.T) {
	s := openTestStore(t)

	last, err := s.Last()
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last != 0 {
		t.Errorf("expected 0, got %d", last)
	}
}

func TestStore_KeysAreBigEndian(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Append([]byte("x")); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket([]byte(recordsBucket)).Cursor().First()
		expected := []byte{0, 0, 0, 0, 0, 0, 0, 1}
		if !bytes.Equal(k, expected) {
			t.Errorf("expected key %x, got %x", expected, k)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStore_Iterator(t *testing.T) {
	s := openTestStore(t)

	// Enough records to cross the 255 -> 256 key boundary.
	const n = 300
	for i := 0; i < n; i++ {
		if _, err := s.Append(utils.ToBytes(int64(i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	it := s.Iterator()
	var prev int64
	count := 0
	for {
		r, err := it.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if r == nil {
			break
		}
		if r.ID <= prev {
			t.Fatalf("ids out of order: %d after %d", r.ID, prev)
		}
		prev = r.ID
		count++
	}
	if count != n {
		t.Errorf("expected %d records, got %d", n, count)
	}

	if r, err := it.Next(); r != nil || err != nil {
		t.Errorf("expected exhausted iterator, got %v, %v", r, err)
	}
}

func TestStore_IteratorEmpty(t *testing.T) {
	s := openTestStore(t)

	r, err := s.Iterator().Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if r != nil {
		t.Errorf("expected nil record, got %+v", r)
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := OpenStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Append([]byte("persisted")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ro, err := OpenStoreReadOnly(path, nil)
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer func() { _ = ro.Close() }()
	if ro.Path() != path {
		t.Errorf("expected path %q, got %q", path, ro.Path())
	}

	r, err := ro.Get(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(r.Value) != "persisted" {
		t.Errorf("expected %q, got %q", "persisted", r.Value)
	}
}

func TestStore_CorruptRecord(t *testing.T) {
	s := openTestStore(t)

	key := utils.ToArray(7)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(recordsBucket)).Put(key[:], []byte("not gob"))
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := s.Get(7); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestStore_ConcurrentAppend(t *testing.T) {
	s := openTestStore(t)

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.Append(utils.ToBytes(int64(i)))
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			ids <- r.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		if id < 1 || id > n {
			t.Errorf("id %d out of range 1..%d", id, n)
		}
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct ids, got %d", n, len(seen))
	}

	last, err := s.Last()
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last != n {
		t.Errorf("expected last %d, got %d", n, last)
	}
}

func TestStoreExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.db")
	if StoreExists(path) {
		t.Fatal("expected no store before open")
	}

	s, err := OpenStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	if !StoreExists(path) {
		t.Error("expected store after open")
	}
}
