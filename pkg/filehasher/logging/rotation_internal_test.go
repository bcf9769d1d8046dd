package logging

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRotatingWriterDue(t *testing.T) {
	day := time.Date(2026, 3, 14, 23, 59, 0, 0, time.Local)
	w := &RotatingWriter{cfg: RotationConfig{MaxSize: 100, Daily: true}, day: day}

	if w.due(500, day) {
		t.Error("empty file must accept an oversized write")
	}
	w.written = 60
	if w.due(40, day) {
		t.Error("write reaching MaxSize exactly must not rotate")
	}
	if !w.due(41, day) {
		t.Error("write past MaxSize must rotate")
	}
	if !w.due(1, day.Add(2*time.Minute)) {
		t.Error("first write of a new day must rotate")
	}
	w.cfg.Daily = false
	if w.due(1, day.Add(2*time.Minute)) {
		t.Error("day change must not rotate when Daily is off")
	}
}

func TestBackupName(t *testing.T) {
	at := time.Date(2026, 1, 20, 15, 4, 5, 123e6, time.UTC)
	got := backupName(filepath.Join("logs", "filehasher.log"), at)
	want := filepath.Join("logs", "filehasher.2026-01-20-150405.123.log")
	if got != want {
		t.Errorf("backupName() = %q, want %q", got, want)
	}
}
