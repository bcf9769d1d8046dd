package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RotationConfig controls log rotation and backup retention.
type RotationConfig struct {
	// MaxSize rotates the file before a write would take it past this many
	// bytes. Zero means 10 MiB.
	MaxSize int64

	// MaxAge deletes backups older than this many days. Zero disables it.
	MaxAge int

	// MaxBackups caps the number of backups kept. Zero disables it.
	MaxBackups int

	// Daily also rotates on the first write of a new calendar day.
	Daily bool
}

// DefaultRotationConfig rotates daily or at 10 MiB and keeps five backups
// for at most 30 days.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{MaxSize: 10 << 20, MaxAge: 30, MaxBackups: 5, Daily: true}
}

// RotatingWriter appends to a log file and moves it aside as a timestamped
// backup when it grows too large or the day changes. Each write holds an
// exclusive flock so several filehasher processes can share one file.
type RotatingWriter struct {
	path string
	cfg  RotationConfig

	mu      sync.Mutex
	f       *os.File
	written int64
	day     time.Time
}

// NewRotatingWriter opens path for appending. Missing parent directories
// are created.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

// Write implements io.Writer.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return 0, os.ErrClosed
	}
	if w.due(int64(len(p)), time.Now()) {
		if err := w.roll(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	fd := int(w.f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("locking log file: %w", err)
	}
	n, err := w.f.Write(p)
	_ = unix.Flock(fd, unix.LOCK_UN)

	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the file. Later calls return nil; later writes
// fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	f := w.f
	w.f = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("syncing log file: %w", err)
	}
	return f.Close()
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.f = f
	w.written = info.Size()
	w.day = info.ModTime()
	return nil
}

// due reports whether a write of n bytes at now must go to a fresh file.
// An empty file never rotates for size, so oversized lines still land.
func (w *RotatingWriter) due(n int64, now time.Time) bool {
	if w.written > 0 && w.written+n > w.cfg.MaxSize {
		return true
	}
	return w.cfg.Daily && !sameDay(w.day, now)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (w *RotatingWriter) roll() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	w.f = nil

	if err := os.Rename(w.path, backupName(w.path, time.Now())); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}
	w.day = time.Now()
	w.prune()
	return nil
}

// backupName inserts a millisecond timestamp before the extension:
// filehasher.log becomes filehasher.2026-01-20-150405.123.log.
func backupName(path string, at time.Time) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + at.Format("2006-01-02-150405.000") + ext
}

type backup struct {
	path string
	mod  time.Time
}

// backups lists rotated files of w.path, newest first.
func (w *RotatingWriter) backups() []backup {
	dir, name := filepath.Split(w.path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext) + "."

	entries, err := os.ReadDir(filepath.Clean(dir))
	if err != nil {
		return nil
	}
	var out []backup
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || n == name || !strings.HasPrefix(n, stem) || !strings.HasSuffix(n, ext) {
			continue
		}
		if info, err := e.Info(); err == nil {
			out = append(out, backup{path: filepath.Join(dir, n), mod: info.ModTime()})
		}
	}
	slices.SortFunc(out, func(a, b backup) int { return b.mod.Compare(a.mod) })
	return out
}

// prune applies MaxBackups and MaxAge. Removal errors are ignored.
func (w *RotatingWriter) prune() {
	cutoff := time.Now().AddDate(0, 0, -w.cfg.MaxAge)
	for i, b := range w.backups() {
		tooMany := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		tooOld := w.cfg.MaxAge > 0 && b.mod.Before(cutoff)
		if tooMany || tooOld {
			_ = os.Remove(b.path)
		}
	}
}
