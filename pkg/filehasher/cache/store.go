package cache

import (
	"encoding/binary"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// ErrNotFound is returned when a cache entry doesn't exist.
var ErrNotFound = errors.New("cache entry not found")

// Store wraps Badger for digest storage.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates a store at path. A store written with another
// schema version is emptied.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.checkSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) checkSchema() error {
	version := 0
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				version = int(binary.BigEndian.Uint64(val))
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	if version == SchemaVersion {
		return nil
	}

	if version != 0 {
		logger.Info("digest cache schema changed, dropping entries", "found", version, "want", SchemaVersion)
		if err := s.db.DropAll(); err != nil {
			return err
		}
	}

	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, SchemaVersion)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), val)
	})
}

// Get retrieves the entry for path under alg.
func (s *Store) Get(alg types.Algorithm, path string) (*Entry, error) {
	var entry Entry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(MakeKey(alg, path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores one entry.
func (s *Store) Put(alg types.Algorithm, path string, entry *Entry) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MakeKey(alg, path), value)
	})
}

// Delete removes one entry.
func (s *Store) Delete(alg types.Algorithm, path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(MakeKey(alg, path))
	})
}

// Key addresses one entry in PutBatch.
type Key struct {
	Algorithm types.Algorithm
	Path      string
}

// PutBatch stores entries in a single write batch.
func (s *Store) PutBatch(entries map[Key]*Entry) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for k, entry := range entries {
		value, err := entry.Encode()
		if err != nil {
			return err
		}
		if err := wb.Set(MakeKey(k.Algorithm, k.Path), value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// DeleteKeys removes raw keys in a single write batch.
func (s *Store) DeleteKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// DropAlgorithm removes every entry of alg. An empty alg removes all digests.
func (s *Store) DropAlgorithm(alg types.Algorithm) error {
	return s.db.DropPrefix(MakeKeyPrefix(alg))
}

// Each calls fn for every entry of alg until fn returns false. An empty
// alg visits all digests.
func (s *Store) Each(alg types.Algorithm, fn func(alg types.Algorithm, path string, e *Entry) bool) error {
	prefix := MakeKeyPrefix(alg)

	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var e Entry
			if err := item.Value(e.Decode); err != nil {
				return err
			}
			a, p := ParseKey(item.KeyCopy(nil))
			if !fn(a, p, &e) {
				return nil
			}
		}
		return nil
	})
}

// Count returns the number of entries per algorithm.
func (s *Store) Count() (map[types.Algorithm]int64, error) {
	counts := make(map[types.Algorithm]int64)
	prefix := MakeKeyPrefix("")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			alg, _ := ParseKey(it.Item().Key())
			counts[alg]++
		}
		return nil
	})
	return counts, err
}

// Size returns the on-disk size of the LSM tree and value log.
func (s *Store) Size() (lsm, vlog int64) {
	return s.db.Size()
}
