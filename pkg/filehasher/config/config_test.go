package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

func TestLoad_Defaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Algorithm != string(DefaultAlgorithm) {
		t.Errorf("Algorithm = %q, want %q", cfg.Algorithm, DefaultAlgorithm)
	}
	if !cfg.ScanImmediately {
		t.Error("ScanImmediately = false, want true")
	}
	if cfg.BlockingHashCalc {
		t.Error("BlockingHashCalc = true, want false")
	}
	if !cfg.Cache.Enabled || !cfg.History.Enabled {
		t.Error("cache and history should be enabled by default")
	}
	if cfg.History.RetentionDays != DefaultRetentionDays {
		t.Errorf("History.RetentionDays = %d, want %d", cfg.History.RetentionDays, DefaultRetentionDays)
	}
	if len(cfg.Exclude) != len(DefaultExclusions) {
		t.Errorf("len(Exclude) = %d, want %d", len(cfg.Exclude), len(DefaultExclusions))
	}

	n, err := cfg.BufferBytes()
	if err != nil || n != 1<<20 {
		t.Errorf("BufferBytes() = %d, %v; want 1MiB", n, err)
	}

	want := types.Settings{Algorithm: types.CRC32, ScanImmediately: true}
	if got := cfg.Settings(); got != want {
		t.Errorf("Settings() = %+v, want %+v", got, want)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
algorithm: sha-256
scan_immediately: false
blocking_hash_calc: true
exclude:
  - "*.tmp"
workers:
  walk: 2
  hash: 6
hash:
  buffer_size: 256K
cache:
  enabled: false
  path: ~/digests
history:
  retention_days: 7
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	settings := cfg.Settings()
	if settings.Algorithm != types.SHA256 {
		t.Errorf("Algorithm = %q, want SHA256", settings.Algorithm)
	}
	if settings.ScanImmediately || !settings.BlockingHashCalc {
		t.Errorf("Settings = %+v", settings)
	}
	if cfg.Workers.Walk != 2 || cfg.Workers.Hash != 6 {
		t.Errorf("Workers = %+v", cfg.Workers)
	}
	if n, _ := cfg.BufferBytes(); n != 256*1024 {
		t.Errorf("BufferBytes() = %d", n)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if want := filepath.Join(tempDir, "digests"); cfg.CachePath() != want {
		t.Errorf("CachePath() = %q, want %q", cfg.CachePath(), want)
	}
	if cfg.History.RetentionDays != 7 {
		t.Errorf("History.RetentionDays = %d, want 7", cfg.History.RetentionDays)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("FILEHASHER_ALGORITHM", "md5")
	t.Setenv("FILEHASHER_WORKERS_HASH", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Settings().Algorithm != types.MD5 {
		t.Errorf("Algorithm = %q, want MD5", cfg.Algorithm)
	}
	if cfg.Workers.Hash != 3 {
		t.Errorf("Workers.Hash = %d, want 3", cfg.Workers.Hash)
	}
}

func TestFromViper_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown algorithm", "algorithm", "whirlpool"},
		{"bad buffer size", "hash.buffer_size", "lots"},
		{"zero buffer size", "hash.buffer_size", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tt.key, tt.value)
			if _, err := FromViper(v); err == nil {
				t.Errorf("FromViper() with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}

func TestLogConfig(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := FromViper(v)
	if err != nil {
		t.Fatal(err)
	}

	lc, err := cfg.LogConfig("warn")
	if err != nil {
		t.Fatalf("LogConfig() error = %v", err)
	}
	if lc.Rotation.MaxSize != 10*types.MiB {
		t.Errorf("MaxSize = %d, want 10MiB", lc.Rotation.MaxSize)
	}
	if lc.Path != DefaultLogPath() {
		t.Errorf("Path = %q, want %q", lc.Path, DefaultLogPath())
	}
	if lc.ConsoleLevel != "warn" {
		t.Errorf("ConsoleLevel = %q", lc.ConsoleLevel)
	}

	cfg.Logging.Rotation.MaxSize = "huge"
	if _, err := cfg.LogConfig(""); err == nil {
		t.Error("expected error for invalid max_size")
	}
}

func TestWriteDefault(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tempDir)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if want := filepath.Join(tempDir, AppName, "config.yaml"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("default config does not parse: %v", err)
	}
	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper() error = %v", err)
	}
	if cfg.Settings().Algorithm != DefaultAlgorithm {
		t.Errorf("Algorithm = %q", cfg.Algorithm)
	}

	// A second call leaves the file alone.
	if err := os.WriteFile(path, []byte("algorithm: MD5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteDefault(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "algorithm: MD5\n" {
		t.Errorf("existing config overwritten: %q", data)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/x/y")
	if err != nil || got != filepath.Join(home, "x", "y") {
		t.Errorf("ExpandPath(~/x/y) = %q, %v", got, err)
	}
	if got, _ := ExpandPath("/abs"); got != "/abs" {
		t.Errorf("ExpandPath(/abs) = %q", got)
	}
}
