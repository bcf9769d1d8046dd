// Package history keeps a log of completed scan, hash and verify runs,
// one JSON file per run.
package history

import (
	"time"

	"github.com/jamesainslie/filehasher/pkg/filehasher/project"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// Record describes one completed run.
type Record struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Operation project.Operation `json:"operation"`
	Root      string            `json:"root,omitempty"`
	Algorithm types.Algorithm   `json:"algorithm,omitempty"`

	// Manifest is the manifest file the run read or wrote, if any.
	Manifest string `json:"manifest,omitempty"`

	Counts     types.Counts `json:"counts"`
	Found      int64        `json:"found,omitempty"`
	CacheHits  int64        `json:"cache_hits,omitempty"`
	Failed     int64        `json:"failed,omitempty"`
	Elapsed    Duration     `json:"elapsed"`
	Aborted    bool         `json:"aborted"`
	Mismatched []string     `json:"mismatched,omitempty"`
	Errors     int          `json:"errors,omitempty"`
}

// Duration is a time.Duration stored as a string such as "1.5s".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// FromResult builds a record from a run result. ID and Timestamp are
// assigned when the record is added.
func FromResult(res *project.Result, manifestPath string) Record {
	return Record{
		Operation:  res.Operation,
		Root:       res.Root,
		Algorithm:  res.Algorithm,
		Manifest:   manifestPath,
		Counts:     res.Counts,
		Found:      res.Found,
		CacheHits:  res.Hash.CacheHits,
		Failed:     res.Hash.Failed,
		Elapsed:    Duration(res.Elapsed),
		Aborted:    res.Aborted,
		Mismatched: res.Mismatched,
		Errors:     len(res.Errors),
	}
}
