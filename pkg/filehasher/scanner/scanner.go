package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/filehasher/pkg/filehasher/checksum"
	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var logger = logging.Get("scanner")

// errAborted stops fastwalk once the abort flag is seen.
var errAborted = errors.New("scan aborted")

// Result summarizes one Scan call.
type Result struct {
	Root    string            `json:"root"`
	Files   int64             `json:"files"`
	Bytes   int64             `json:"bytes"`
	Dirs    int64             `json:"dirs"`
	Hashed  int64             `json:"hashed"`
	Aborted bool              `json:"aborted"`
	Elapsed time.Duration     `json:"elapsed"`
	Errors  []types.FileError `json:"errors,omitempty"`
}

// Scanner walks one root. Abort is sticky: once called, every later Scan on
// the same Scanner returns immediately, so use a new Scanner per run.
type Scanner struct {
	opts    Options
	exclude *matcher

	aborted atomic.Bool

	files  atomic.Int64
	bytes  atomic.Int64
	dirs   atomic.Int64
	hashed atomic.Int64

	errors   []types.FileError
	errorsMu sync.Mutex

	// emitMu serializes calls to the caller's emit function.
	emitMu sync.Mutex

	bufPool sync.Pool
}

// New creates a Scanner. Invalid exclude patterns are reported here.
func New(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m, err := compileExcludes(opts.Exclude)
	if err != nil {
		return nil, err
	}

	s := &Scanner{opts: opts, exclude: m}
	bufSize := opts.BufferSize
	s.bufPool.New = func() any {
		buf := make([]byte, bufSize)
		return &buf
	}
	return s, nil
}

// Abort asks a running Scan to stop before its next filesystem entry.
func (s *Scanner) Abort() {
	s.aborted.Store(true)
}

// Aborted reports whether Abort was called or a Scan was cancelled.
func (s *Scanner) Aborted() bool {
	return s.aborted.Load()
}

// Scan walks the root and calls emit once per regular file. emit is never
// called concurrently. Scan returns when the walk has finished, was
// aborted, or ctx was cancelled; all three count as "scan finished".
//
// An invalid root yields zero entries and a Result carrying the error.
func (s *Scanner) Scan(ctx context.Context, emit func(types.FileEntry)) *Result {
	start := time.Now()
	s.reset()

	root, err := filepath.Abs(s.opts.Root)
	if err == nil {
		err = checkRoot(root)
	}
	if err != nil {
		logger.Warn("invalid scan root", "root", s.opts.Root, "error", err)
		s.addError(s.opts.Root, err)
		return s.result(s.opts.Root, start)
	}

	logger.Info("scan started", "root", root, "algorithm", s.opts.Settings.Algorithm,
		"inline_hash", s.opts.Settings.HashDuringScan())

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: s.opts.Workers,
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	walkErr := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if s.aborted.Load() || ctx.Err() != nil {
			s.aborted.Store(true)
			return errAborted
		}

		if err != nil {
			s.addError(path, err)
			return nil //nolint:nilerr // unreadable entries are recorded and skipped
		}

		if path == root {
			return nil
		}

		rel := filepath.ToSlash(strings.TrimPrefix(path, prefix))
		if s.exclude.excluded(rel, d.Name()) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			s.dirs.Add(1)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		entry, ok := s.visitFile(root, rel, path, d)
		if !ok {
			return nil
		}

		s.emitMu.Lock()
		if s.aborted.Load() {
			s.emitMu.Unlock()
			return errAborted
		}
		emit(entry)
		found := s.files.Add(1)
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(found)
		}
		s.emitMu.Unlock()
		return nil
	})

	if walkErr != nil && !errors.Is(walkErr, errAborted) {
		logger.Error("walk failed", "root", root, "error", walkErr)
		s.addError(root, walkErr)
	}

	res := s.result(root, start)
	logger.Info("scan finished", "root", root, "files", res.Files, "aborted", res.Aborted,
		"errors", len(res.Errors), "elapsed", res.Elapsed)
	return res
}

// visitFile stats the file and, in inline mode, hashes it.
func (s *Scanner) visitFile(root, rel, path string, d fs.DirEntry) (types.FileEntry, bool) {
	info, err := d.Info()
	if err != nil {
		s.addError(path, err)
		return types.FileEntry{}, false
	}

	entry := types.NewFileEntry(root, rel)
	entry.Size = info.Size()
	entry.ModTime = info.ModTime()
	s.bytes.Add(entry.Size)

	if s.opts.Settings.HashDuringScan() {
		bufp, _ := s.bufPool.Get().(*[]byte)
		digest, err := checksum.DigestFileBuffer(path, s.opts.Settings.Algorithm, *bufp)
		s.bufPool.Put(bufp)
		if err != nil {
			logger.Warn("inline hash failed", "path", path, "error", err)
			s.addError(path, err)
		} else {
			entry.Hash = digest
			entry.Algorithm = s.opts.Settings.Algorithm
			s.hashed.Add(1)
		}
	}

	return entry, true
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return types.NewIOError("stat", root, err)
	}
	if !info.IsDir() {
		return types.NewIOError("scan", root, errors.New("not a directory"))
	}
	return nil
}

func (s *Scanner) reset() {
	s.files.Store(0)
	s.bytes.Store(0)
	s.dirs.Store(0)
	s.hashed.Store(0)
	s.errorsMu.Lock()
	s.errors = nil
	s.errorsMu.Unlock()
}

func (s *Scanner) addError(path string, err error) {
	s.errorsMu.Lock()
	s.errors = append(s.errors, types.FileError{Path: path, Error: err.Error()})
	s.errorsMu.Unlock()
}

func (s *Scanner) result(root string, start time.Time) *Result {
	s.errorsMu.Lock()
	errs := append([]types.FileError(nil), s.errors...)
	s.errorsMu.Unlock()

	return &Result{
		Root:    root,
		Files:   s.files.Load(),
		Bytes:   s.bytes.Load(),
		Dirs:    s.dirs.Load(),
		Hashed:  s.hashed.Load(),
		Aborted: s.aborted.Load(),
		Elapsed: time.Since(start),
		Errors:  errs,
	}
}
