// Package cache keeps primary digests in a Badger store so unchanged files
// are not read again. An entry is only served when the file's size and
// modification time still match the values it was computed from.
package cache

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var logger = logging.Get("cache")

// flushThreshold is the number of pending writes that triggers a batch.
const flushThreshold = 256

// Stats describes the cache contents and this session's activity.
type Stats struct {
	Entries     map[types.Algorithm]int64 `json:"entries" yaml:"entries"`
	Total       int64                     `json:"total" yaml:"total"`
	LSMBytes    int64                     `json:"lsm_bytes" yaml:"lsm_bytes"`
	VLogBytes   int64                     `json:"vlog_bytes" yaml:"vlog_bytes"`
	Hits        int64                     `json:"hits" yaml:"hits"`
	Misses      int64                     `json:"misses" yaml:"misses"`
	Stale       int64                     `json:"stale" yaml:"stale"`
	WriteErrors int64                     `json:"write_errors" yaml:"write_errors"`
}

// Cache is a digest cache safe for concurrent use by hash workers.
type Cache struct {
	store *Store

	mu      sync.Mutex
	pending map[Key]*Entry

	hits, misses, stale, writeErrors atomic.Int64
}

// Open opens or creates a cache at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, types.NewIOError("mkdir", path, err)
	}
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("digest cache opened", "path", path)
	return &Cache{store: store, pending: make(map[Key]*Entry)}, nil
}

// Close flushes pending writes and closes the store.
func (c *Cache) Close() error {
	flushErr := c.Flush()
	return errors.Join(flushErr, c.store.Close())
}

// Lookup returns the cached digest for path if the file still has the
// given size and modification time.
func (c *Cache) Lookup(path string, alg types.Algorithm, size int64, modTime time.Time) (string, bool) {
	k := Key{Algorithm: alg, Path: path}

	c.mu.Lock()
	e, ok := c.pending[k]
	c.mu.Unlock()

	if !ok {
		var err error
		e, err = c.store.Get(alg, path)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				logger.Warn("digest cache read failed", "path", path, "error", err)
			}
			c.misses.Add(1)
			return "", false
		}
	}

	if !e.Matches(size, modTime) {
		c.stale.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return e.Digest, true
}

// Store records a digest. Writes are batched; Flush or Close persists them.
func (c *Cache) Store(path string, alg types.Algorithm, size int64, modTime time.Time, digest string) {
	e := &Entry{
		Size:     size,
		Mtime:    modTime.UnixNano(),
		Digest:   digest,
		StoredAt: time.Now().UnixNano(),
	}

	c.mu.Lock()
	c.pending[Key{Algorithm: alg, Path: path}] = e
	full := len(c.pending) >= flushThreshold
	c.mu.Unlock()

	if full {
		if err := c.Flush(); err != nil {
			logger.Warn("digest cache flush failed", "error", err)
		}
	}
}

// Flush writes pending entries to the store.
func (c *Cache) Flush() error {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[Key]*Entry)
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := c.store.PutBatch(batch); err != nil {
		c.writeErrors.Add(int64(len(batch)))
		return err
	}
	logger.Debug("digest cache flushed", "entries", len(batch))
	return nil
}

// Clear removes every entry of alg, or all entries when alg is empty.
func (c *Cache) Clear(alg types.Algorithm) error {
	c.mu.Lock()
	for k := range c.pending {
		if alg == "" || k.Algorithm == alg {
			delete(c.pending, k)
		}
	}
	c.mu.Unlock()

	if err := c.store.DropAlgorithm(alg); err != nil {
		return err
	}
	logger.Info("digest cache cleared", "algorithm", alg)
	return nil
}

// Prune removes entries whose file is gone or has changed since it was
// hashed. It returns the number of removed entries.
func (c *Cache) Prune() (int, error) {
	if err := c.Flush(); err != nil {
		return 0, err
	}

	var dead [][]byte
	err := c.store.Each("", func(alg types.Algorithm, path string, e *Entry) bool {
		info, statErr := os.Stat(path)
		if statErr != nil || info.IsDir() || !e.Matches(info.Size(), info.ModTime()) {
			dead = append(dead, MakeKey(alg, path))
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if err := c.store.DeleteKeys(dead); err != nil {
		return 0, err
	}
	logger.Info("digest cache pruned", "removed", len(dead))
	return len(dead), nil
}

// Stats returns the entry counts and session counters.
func (c *Cache) Stats() (Stats, error) {
	if err := c.Flush(); err != nil {
		return Stats{}, err
	}
	counts, err := c.store.Count()
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		Entries:     counts,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Stale:       c.stale.Load(),
		WriteErrors: c.writeErrors.Load(),
	}
	for _, n := range counts {
		st.Total += n
	}
	st.LSMBytes, st.VLogBytes = c.store.Size()
	return st, nil
}
