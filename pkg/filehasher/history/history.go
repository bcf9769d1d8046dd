package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var logger = logging.Get("history")

// ErrNotFound is returned by Get when no record matches.
var ErrNotFound = errors.New("history record not found")

// ErrAmbiguous is returned by Get when an ID prefix matches several records.
var ErrAmbiguous = errors.New("history ID prefix is ambiguous")

// History stores run records in a directory.
type History struct {
	dir string
	mu  sync.Mutex

	now func() time.Time
}

// New returns a history rooted at dir. The directory is created on the
// first Add.
func New(dir string) (*History, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &History{dir: dir, now: time.Now}, nil
}

// Dir returns the storage directory.
func (h *History) Dir() string { return h.dir }

// Add assigns an ID and timestamp to rec and persists it.
func (h *History) Add(rec Record) (*Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec.ID = uuid.NewString()
	rec.Timestamp = h.now().UTC()

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return nil, types.NewIOError("mkdir", h.dir, err)
	}
	if err := h.write(&rec); err != nil {
		return nil, err
	}
	logger.Debug("run recorded", "id", rec.ID, "operation", rec.Operation)
	return &rec, nil
}

func (h *History) write(rec *Record) error {
	path := filepath.Join(h.dir, filename(rec))

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return types.NewIOError("write", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return types.NewIOError("rename", path, err)
	}
	return nil
}

// filename sorts lexically by time, e.g. "20240615T103000Z-verify-<id>.json".
func filename(rec *Record) string {
	return fmt.Sprintf("%s-%s-%s.json", rec.Timestamp.Format("20060102T150405Z"), rec.Operation, rec.ID)
}

// List returns records newest first. A limit of zero or less returns all.
// Files that cannot be parsed are skipped.
func (h *History) List(limit int) ([]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.readAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Get returns the record whose ID equals id or starts with it.
func (h *History) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("history ID cannot be empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.readAll()
	if err != nil {
		return nil, err
	}

	var found *Record
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
		if strings.HasPrefix(records[i].ID, id) {
			if found != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
			}
			found = &records[i]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return found, nil
}

// Clean removes records older than retentionDays and returns how many
// were removed. A retention of zero or less removes nothing.
func (h *History) Clean(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().AddDate(0, 0, -retentionDays)
	files, err := h.files()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range files {
		path := filepath.Join(h.dir, name)
		stamp, ok := h.stamp(path)
		if !ok || !stamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove history record", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("history cleaned", "removed", removed, "retention_days", retentionDays)
	}
	return removed, nil
}

// stamp returns the record timestamp, or the file time for files that do
// not parse.
func (h *History) stamp(path string) (time.Time, bool) {
	if rec, err := readRecord(path); err == nil && !rec.Timestamp.IsZero() {
		return rec.Timestamp, true
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (h *History) readAll() ([]Record, error) {
	files, err := h.files()
	if err != nil {
		return nil, err
	}
	records := []Record{}
	for _, name := range files {
		rec, err := readRecord(filepath.Join(h.dir, name))
		if err != nil {
			logger.Debug("skipping unreadable history record", "file", name, "error", err)
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (h *History) files() ([]string, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewIOError("readdir", h.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}
