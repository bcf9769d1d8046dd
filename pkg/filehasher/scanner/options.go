// Package scanner walks a directory tree and produces file entries for the
// registry. Traversal runs on fastwalk's worker pool; entries are handed to
// the caller one at a time from a single goroutine at a time.
package scanner

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// Options configures a Scanner.
type Options struct {
	// Root is the directory to walk.
	Root string

	// Settings decide whether digests are computed during the walk.
	Settings types.Settings

	// Exclude holds glob patterns. A pattern without a slash is matched
	// against the base name, otherwise against the slash-separated path
	// relative to Root. "**" crosses directory boundaries.
	Exclude []string

	// Workers is the number of fastwalk workers. Zero picks a default.
	Workers int

	// BufferSize is the read buffer for inline hashing. Zero picks a default.
	BufferSize int

	// OnProgress, if set, is called after each emitted entry with the number
	// of files found so far.
	OnProgress func(found int64)
}

// DefaultWorkers is used when Options.Workers is not positive.
func DefaultWorkers() int {
	return min(max(runtime.NumCPU(), 2), 8)
}

// Validate applies defaults and compiles exclude patterns.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = "."
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers()
	}
	if o.BufferSize < 1 {
		o.BufferSize = 64 * 1024
	}
	if o.Settings.Algorithm == "" {
		o.Settings.Algorithm = types.CRC32
	}
	_, err := compileExcludes(o.Exclude)
	return err
}

// matcher reports whether a relative path is excluded.
type matcher struct {
	base []glob.Glob
	full []glob.Glob
}

func compileExcludes(patterns []string) (*matcher, error) {
	m := &matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		if strings.Contains(p, "/") {
			m.full = append(m.full, g)
		} else {
			m.base = append(m.base, g)
		}
	}
	return m, nil
}

func (m *matcher) excluded(rel, base string) bool {
	for _, g := range m.base {
		if g.Match(base) {
			return true
		}
	}
	for _, g := range m.full {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
