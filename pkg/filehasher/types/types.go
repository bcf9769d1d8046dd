// Package types provides the core data types for filehasher.
// It includes the file entry model, per-run settings, registry counts,
// and utility functions for parsing and formatting file sizes.
package types

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// SizeUnknown marks an entry whose size has not been read from disk.
const SizeUnknown int64 = -1

// MatchState is the outcome of comparing a primary digest with a
// verification digest.
type MatchState int

const (
	// MatchUnknown means at least one of the two digests is missing.
	MatchUnknown MatchState = iota
	// Match means both digests are present and equal.
	Match
	// Mismatch means both digests are present and differ.
	Mismatch
)

// String returns the lowercase name of the state.
func (m MatchState) String() string {
	switch m {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m MatchState) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// CompareDigests derives the match state of a primary and a verification digest.
func CompareDigests(hash, verifyHash string) MatchState {
	if hash == "" || verifyHash == "" {
		return MatchUnknown
	}
	if hash == verifyHash {
		return Match
	}
	return Mismatch
}

// FileEntry is one file known to a registry.
type FileEntry struct {
	// BasePath is the directory root the file was found under.
	BasePath string `json:"base_path"`

	// RelativeName is the path below BasePath in slash form.
	RelativeName string `json:"relative_name"`

	// Size is the file size in bytes, or SizeUnknown.
	Size int64 `json:"size"`

	// ModTime is the modification time seen by the scanner. Zero when the
	// entry was loaded from a manifest.
	ModTime time.Time `json:"mod_time,omitzero"`

	// Hash is the primary digest as uppercase hex. Empty means not computed.
	Hash string `json:"hash,omitempty"`

	// VerifyHash is the digest produced by a verification pass.
	VerifyHash string `json:"verify_hash,omitempty"`

	// Match is derived from Hash and VerifyHash.
	Match MatchState `json:"match"`

	// Algorithm produced Hash.
	Algorithm Algorithm `json:"algorithm,omitempty"`
}

// NewFileEntry builds an entry for a file below basePath.
// relativeName may use the OS separator; it is stored in slash form.
func NewFileEntry(basePath, relativeName string) FileEntry {
	return FileEntry{
		BasePath:     basePath,
		RelativeName: filepath.ToSlash(relativeName),
		Size:         SizeUnknown,
	}
}

// FullPath joins BasePath and RelativeName using the OS separator.
func (e *FileEntry) FullPath() string {
	if e.BasePath == "" {
		return filepath.FromSlash(e.RelativeName)
	}
	return filepath.Join(e.BasePath, filepath.FromSlash(e.RelativeName))
}

// DisplayName returns RelativeName using the OS separator.
func (e *FileEntry) DisplayName() string {
	return filepath.FromSlash(path.Clean(e.RelativeName))
}

// HumanSize returns the size formatted with binary units, or "?" when unknown.
func (e *FileEntry) HumanSize() string {
	if e.Size < 0 {
		return "?"
	}
	return FormatSize(e.Size)
}

// Settings are the per-run options of a scan or hash invocation.
// A Settings value is copied into each run and never mutated by the pipeline.
type Settings struct {
	// Algorithm is used for every primary digest of the run.
	Algorithm Algorithm `json:"algorithm" yaml:"algorithm"`

	// ScanImmediately hashes each file as soon as it is found.
	ScanImmediately bool `json:"scan_immediately" yaml:"scan_immediately"`

	// BlockingHashCalc computes digests inside the scan step itself
	// instead of handing them to the hash coordinator.
	BlockingHashCalc bool `json:"blocking_hash_calc" yaml:"blocking_hash_calc"`
}

// DefaultSettings returns CRC32 with immediate, non-blocking hashing.
func DefaultSettings() Settings {
	return Settings{
		Algorithm:       CRC32,
		ScanImmediately: true,
	}
}

// HashDuringScan reports whether the scanner computes digests inline.
func (s Settings) HashDuringScan() bool {
	return s.BlockingHashCalc && s.ScanImmediately
}

// Counts is a snapshot of registry counters.
type Counts struct {
	Total      int `json:"total" yaml:"total"`
	Hashed     int `json:"hashed" yaml:"hashed"`
	Verified   int `json:"verified" yaml:"verified"`
	Mismatched int `json:"mismatched" yaml:"mismatched"`
}

// HashRequest asks for the digest of a single registry row.
type HashRequest struct {
	// Index is the registry row the result belongs to.
	Index int

	// Path is the absolute path of the file to read.
	Path string

	// Algorithm selects the digest.
	Algorithm Algorithm

	// Verify marks the result as a verification digest.
	Verify bool

	// Size and ModTime validate cached digests. With a zero ModTime the
	// hasher stats the file before consulting the cache.
	Size    int64
	ModTime time.Time
}

// HashResult is the outcome of a HashRequest.
type HashResult struct {
	Index     int       `json:"index"`
	Algorithm Algorithm `json:"algorithm"`
	Digest    string    `json:"digest"`
	Verify    bool      `json:"verify"`
}

// FileError records a per-file failure that did not stop a run.
type FileError struct {
	// Path is the file or directory path where the error occurred.
	Path string `json:"path"`

	// Error is the error message describing what went wrong.
	Error string `json:"error"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// Accepted suffixes are B, K, M, G and T, optionally followed by "B" or "iB",
// in any case. All units are binary. Decimal values are truncated.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string
// using binary (IEC) units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
