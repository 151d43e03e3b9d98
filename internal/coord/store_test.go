package coord

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
	"github.com/hugo-lorenzo-mato/testherd/internal/logging"
)

func testStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(logging.NewNop().Logger)
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := testStore(t)
	tmpDir := t.TempDir()

	cases := []struct {
		name string
		doc  map[string]interface{}
	}{
		{"simple", map[string]interface{}{"a": "b", "n": float64(42)}},
		{"empty object", map[string]interface{}{}},
		{"empty array value", map[string]interface{}{"items": []interface{}{}}},
		{"nested", map[string]interface{}{"outer": map[string]interface{}{"inner": []interface{}{"x", "y"}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tc.name+".json")
			if err := store.Write(path, tc.doc); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			var got map[string]interface{}
			if err := store.Read(path, &got); err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.doc) {
				t.Errorf("round trip mismatch: got %v, want %v", got, tc.doc)
			}
		})
	}
}

func TestFileStore_ReadMissing(t *testing.T) {
	store := testStore(t)
	path := filepath.Join(t.TempDir(), "nope.json")

	var v map[string]interface{}
	err := store.Read(path, &v)
	if err == nil {
		t.Fatal("expected error for missing document")
	}
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("category = %s, want not_found", core.GetCategory(err))
	}
}

func TestFileStore_ReadEmptyFileIsNotFound(t *testing.T) {
	store := testStore(t)
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var v map[string]interface{}
	err := store.Read(path, &v)
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("empty file should read as not_found, got %v", err)
	}
}

func TestFileStore_ReadCorrupt(t *testing.T) {
	store := testStore(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var v map[string]interface{}
	err := store.Read(path, &v)
	if !core.IsCategory(err, core.ErrCatCorruption) {
		t.Errorf("category = %s, want corruption", core.GetCategory(err))
	}
}

func TestFileStore_WriteContention(t *testing.T) {
	store := testStore(t)
	path := filepath.Join(t.TempDir(), "doc.json")

	// Simulate another writer mid-write.
	if err := os.WriteFile(path+".wlock", nil, 0o644); err != nil {
		t.Fatal(err)
	}

	err := store.Write(path, map[string]string{"k": "v"})
	if err == nil {
		t.Fatal("expected contention error while write lock is held")
	}
	if !core.IsCategory(err, core.ErrCatContention) {
		t.Errorf("category = %s, want contention", core.GetCategory(err))
	}
}

func TestFileStore_WriteReclaimsAbandonedLock(t *testing.T) {
	store := NewFileStore(logging.NewNop().Logger, WithWriteLockTTL(50*time.Millisecond))
	path := filepath.Join(t.TempDir(), "doc.json")

	lockPath := path + ".wlock"
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Second)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	if err := store.Write(path, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Write() should reclaim abandoned lock, got %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("write lock should be gone after write")
	}
}

func TestFileStore_WriteOverwritesAtomically(t *testing.T) {
	store := testStore(t)
	path := filepath.Join(t.TempDir(), "doc.json")

	if err := store.Write(path, map[string]string{"v": "one"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(path, map[string]string{"v": "two"}); err != nil {
		t.Fatal(err)
	}

	var got map[string]string
	if err := store.Read(path, &got); err != nil {
		t.Fatal(err)
	}
	if got["v"] != "two" {
		t.Errorf("v = %s, want two", got["v"])
	}
}

func TestFileStore_CleansLeftoverTemps(t *testing.T) {
	store := testStore(t)
	path := filepath.Join(t.TempDir(), "doc.json")

	// Pretend a crashed writer left its temp file behind.
	leftover := path + ".tmp12345"
	if err := os.WriteFile(leftover, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := store.Write(path, map[string]string{"k": "v"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Error("leftover temp file should have been removed")
	}
}
