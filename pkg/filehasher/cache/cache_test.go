package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "digests"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheOpenClose(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "digests"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCacheLookupStore(t *testing.T) {
	c := openTestCache(t)
	mod := time.Unix(1700000000, 123)

	if _, ok := c.Lookup("/a", types.MD5, 10, mod); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Store("/a", types.MD5, 10, mod, "ABCD")

	if d, ok := c.Lookup("/a", types.MD5, 10, mod); !ok || d != "ABCD" {
		t.Errorf("Lookup = %q, %v; want ABCD, true", d, ok)
	}
	if _, ok := c.Lookup("/a", types.SHA1, 10, mod); ok {
		t.Error("other algorithm should miss")
	}
	if _, ok := c.Lookup("/a", types.MD5, 11, mod); ok {
		t.Error("changed size should miss")
	}
	if _, ok := c.Lookup("/a", types.MD5, 10, mod.Add(time.Second)); ok {
		t.Error("changed mtime should miss")
	}

	st, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Hits != 1 || st.Misses != 2 || st.Stale != 2 {
		t.Errorf("stats = %+v", st)
	}
	if st.Total != 1 || st.Entries[types.MD5] != 1 {
		t.Errorf("entries = %v total = %d", st.Entries, st.Total)
	}
}

func TestCachePersistsAcrossOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "digests")
	mod := time.Unix(1700000000, 0)

	c, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	c.Store("/x", types.CRC32, 3, mod, "0A0B0C0D")
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if d, ok := c.Lookup("/x", types.CRC32, 3, mod); !ok || d != "0A0B0C0D" {
		t.Errorf("Lookup after reopen = %q, %v", d, ok)
	}
}

func TestCacheFlushThreshold(t *testing.T) {
	c := openTestCache(t)
	mod := time.Unix(1, 0)

	for i := 0; i < flushThreshold; i++ {
		c.Store(fmt.Sprintf("/f%d", i), types.SHA256, 1, mod, "AA")
	}

	c.mu.Lock()
	pending := len(c.pending)
	c.mu.Unlock()
	if pending != 0 {
		t.Errorf("pending = %d after reaching threshold, want 0", pending)
	}

	if _, err := c.store.Get(types.SHA256, "/f0"); err != nil {
		t.Errorf("entry not persisted: %v", err)
	}
}

func TestCacheClear(t *testing.T) {
	c := openTestCache(t)
	mod := time.Unix(1, 0)
	c.Store("/a", types.MD5, 1, mod, "AA")
	c.Store("/b", types.SHA1, 1, mod, "BB")
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	c.Store("/c", types.MD5, 1, mod, "CC")

	if err := c.Clear(types.MD5); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup("/a", types.MD5, 1, mod); ok {
		t.Error("/a should be cleared")
	}
	if _, ok := c.Lookup("/c", types.MD5, 1, mod); ok {
		t.Error("pending /c should be cleared")
	}
	if _, ok := c.Lookup("/b", types.SHA1, 1, mod); !ok {
		t.Error("/b should survive")
	}

	if err := c.Clear(""); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup("/b", types.SHA1, 1, mod); ok {
		t.Error("/b should be cleared")
	}
}

func TestCachePrune(t *testing.T) {
	c := openTestCache(t)
	dir := t.TempDir()

	keep := filepath.Join(dir, "keep.txt")
	changed := filepath.Join(dir, "changed.txt")
	for _, p := range []string{keep, changed} {
		if err := os.WriteFile(p, []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	keepInfo, _ := os.Stat(keep)
	changedInfo, _ := os.Stat(changed)

	c.Store(keep, types.MD5, keepInfo.Size(), keepInfo.ModTime(), "K")
	c.Store(changed, types.MD5, changedInfo.Size()+1, changedInfo.ModTime(), "C")
	c.Store(filepath.Join(dir, "gone.txt"), types.MD5, 1, time.Unix(1, 0), "G")

	removed, err := c.Prune()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, err := c.store.Get(types.MD5, keep); err != nil {
		t.Errorf("keep entry removed: %v", err)
	}
	if _, err := c.store.Get(types.MD5, changed); !errors.Is(err, ErrNotFound) {
		t.Errorf("changed entry: err = %v, want ErrNotFound", err)
	}
}

func TestOpen_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(filepath.Join(f, "digests"))
	if !errors.Is(err, types.ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}
