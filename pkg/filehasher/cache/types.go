package cache

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// SchemaVersion is incremented when the value encoding changes. A store
// written with another version is emptied on open.
const SchemaVersion = 1

// KeySeparator separates the algorithm from the path in keys.
const KeySeparator = '\x00'

const (
	prefixDigest = "d:"
	schemaKey    = "m:__schema__"
)

// Entry is a cached digest and the file state it was computed from.
type Entry struct {
	Size     int64
	Mtime    int64 // UnixNano
	Digest   string
	StoredAt int64 // UnixNano
}

// Matches reports whether the entry was computed from a file with this
// size and modification time.
func (e *Entry) Matches(size int64, modTime time.Time) bool {
	return e.Size == size && e.Mtime == modTime.UnixNano()
}

// Encode serializes the entry using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes data into the entry.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey builds the key for path under alg.
// Format: d:<ALG>\x00<path>
func MakeKey(alg types.Algorithm, path string) []byte {
	return append(MakeKeyPrefix(alg), path...)
}

// MakeKeyPrefix returns the prefix shared by every key of alg. An empty
// algorithm yields the prefix of all digest keys.
func MakeKeyPrefix(alg types.Algorithm) []byte {
	if alg == "" {
		return []byte(prefixDigest)
	}
	return []byte(prefixDigest + string(alg) + string(KeySeparator))
}

// ParseKey splits a digest key into algorithm and path.
func ParseKey(key []byte) (types.Algorithm, string) {
	key = bytes.TrimPrefix(key, []byte(prefixDigest))
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return "", string(key)
	}
	return types.Algorithm(key[:idx]), string(key[idx+1:])
}
