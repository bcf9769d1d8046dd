package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// WorkersConfig sizes the worker pools. Zero lets the tuner decide.
type WorkersConfig struct {
	Walk int `mapstructure:"walk" yaml:"walk"`
	Hash int `mapstructure:"hash" yaml:"hash"`
}

// HashConfig tunes digest computation.
type HashConfig struct {
	BufferSize string `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// CacheConfig configures the digest cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// HistoryConfig configures the run history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Algorithm        string        `mapstructure:"algorithm" yaml:"algorithm"`
	ScanImmediately  bool          `mapstructure:"scan_immediately" yaml:"scan_immediately"`
	BlockingHashCalc bool          `mapstructure:"blocking_hash_calc" yaml:"blocking_hash_calc"`
	Exclude          []string      `mapstructure:"exclude" yaml:"exclude"`
	Format           string        `mapstructure:"format" yaml:"format"`
	Workers          WorkersConfig `mapstructure:"workers" yaml:"workers"`
	Hash             HashConfig    `mapstructure:"hash" yaml:"hash"`
	Cache            CacheConfig   `mapstructure:"cache" yaml:"cache"`
	History          HistoryConfig `mapstructure:"history" yaml:"history"`
	Logging          LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/filehasher/config.yaml
//   - $HOME/.config/filehasher/config.yaml
//
// Environment variables are prefixed with FILEHASHER_ (e.g. FILEHASHER_ALGORITHM).
func Load() (*Config, error) {
	v := viper.New()
	if err := Prepare(v, ""); err != nil {
		return nil, err
	}
	if err := ReadIn(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Prepare registers search paths, environment binding and defaults on v.
// A non-empty file replaces the search paths.
func Prepare(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, AppName))
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", AppName))
	}

	v.SetEnvPrefix("FILEHASHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("algorithm", string(DefaultAlgorithm))
	v.SetDefault("scan_immediately", true)
	v.SetDefault("blocking_hash_calc", false)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("format", DefaultFormat)
	v.SetDefault("workers.walk", 0)
	v.SetDefault("workers.hash", 0)
	v.SetDefault("hash.buffer_size", DefaultBufferSize)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "") // Empty means DefaultCachePath

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means HistoryDir
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"scanner":  "info",
		"hasher":   "info",
		"registry": "warn",
	})
}

// ReadIn reads the config file. A missing file is not an error.
func ReadIn(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if _, err := types.ParseAlgorithm(cfg.Algorithm); err != nil {
		return nil, fmt.Errorf("config algorithm: %w", err)
	}
	if _, err := cfg.BufferBytes(); err != nil {
		return nil, err
	}

	var err error
	if cfg.Cache.Path, err = ExpandPath(cfg.Cache.Path); err != nil {
		return nil, err
	}
	if cfg.History.Path, err = ExpandPath(cfg.History.Path); err != nil {
		return nil, err
	}
	if cfg.Logging.Path, err = ExpandPath(cfg.Logging.Path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Settings converts the configuration into the value handed to each run.
func (c *Config) Settings() types.Settings {
	return types.Settings{
		Algorithm:        types.AlgorithmOrDefault(c.Algorithm),
		ScanImmediately:  c.ScanImmediately,
		BlockingHashCalc: c.BlockingHashCalc,
	}
}

// BufferBytes parses hash.buffer_size.
func (c *Config) BufferBytes() (int, error) {
	if c.Hash.BufferSize == "" {
		return 0, nil
	}
	n, err := types.ParseSize(c.Hash.BufferSize)
	if err != nil {
		return 0, fmt.Errorf("invalid hash.buffer_size %q: %w", c.Hash.BufferSize, err)
	}
	if n < 1 || n > 1<<30 {
		return 0, fmt.Errorf("hash.buffer_size %q out of range", c.Hash.BufferSize)
	}
	return int(n), nil
}

// LogConfig converts the logging section. consoleLevel enables stderr
// output when non-empty.
func (c *Config) LogConfig(consoleLevel string) (logging.Config, error) {
	rot := logging.RotationConfig{
		MaxAge:     c.Logging.Rotation.MaxAge,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		Daily:      c.Logging.Rotation.Daily,
	}
	if c.Logging.Rotation.MaxSize != "" {
		n, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.rotation.max_size %q: %w", c.Logging.Rotation.MaxSize, err)
		}
		rot.MaxSize = n
	}

	path := c.Logging.Path
	if path == "" {
		path = DefaultLogPath()
	}
	return logging.Config{
		Level:        c.Logging.Level,
		Path:         path,
		Rotation:     rot,
		Components:   c.Logging.Components,
		ConsoleLevel: consoleLevel,
	}, nil
}

// CachePath returns the configured cache path or the default.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return DefaultCachePath()
}

// HistoryPath returns the configured history directory or the default.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return HistoryDir()
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", AppName), nil
}

// ConfigPath returns the path of the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# filehasher configuration

# Digest algorithm: CRC32, MD4, MD5, SHA1, SHA256, SHA512, BLAKE3
algorithm: %s

# Hash each file as soon as it is found
scan_immediately: true

# Hash inside the directory walk instead of on the hash worker pool
blocking_hash_calc: false

# Glob patterns to skip. Patterns without a slash match file names.
exclude:
  - .DS_Store
  - Thumbs.db

# Report format: plain, pretty, json, yaml, tsv, csv, template
format: %s

# Worker pools (0 = tuned to this machine)
workers:
  walk: 0
  hash: 0

hash:
  buffer_size: %s

# Digest cache keyed by path, size and modification time
cache:
  enabled: true
  # Empty means $XDG_CACHE_HOME/filehasher/digests
  path: ""

# Run history
history:
  enabled: true
  # Empty means $XDG_DATA_HOME/filehasher/history
  path: ""
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Empty means $XDG_STATE_HOME/filehasher/filehasher.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    scanner: info
    hasher: info
    registry: warn
`, DefaultAlgorithm, DefaultFormat, DefaultBufferSize, DefaultRetentionDays)

	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/filehasher.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateDir returns $XDG_STATE_HOME/filehasher.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// CacheDir returns $XDG_CACHE_HOME/filehasher.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// DefaultCachePath returns the default digest cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "digests")
}

// HistoryDir returns the default run history directory.
func HistoryDir() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), AppName+".log")
}
