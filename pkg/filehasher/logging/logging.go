// Package logging provides per-component loggers backed by charmbracelet/log
// and a rotating log file.
//
// Packages take a logger once at package level:
//
//	var logger = logging.Get("scanner")
//
// Until Init is called those loggers drop everything, so the library
// packages are silent when embedded elsewhere. Init and Close may be called
// repeatedly; existing loggers, including those derived with With, switch
// to the new outputs.
package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a logging level.
type Level = log.Level

// Supported levels.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// ErrInvalidLevel is returned for an unrecognized level name.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
// An empty string means info.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		name = "warn"
	}
	lvl, err := log.ParseLevel(name)
	if err != nil || lvl == log.FatalLevel {
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
	return lvl, nil
}

// Config configures the logging system.
type Config struct {
	// Level is the file log level.
	Level string

	// Path is the log file. Empty uses DefaultLogPath().
	Path string

	// Rotation controls when the log file is rotated.
	Rotation RotationConfig

	// Components overrides Level per component name.
	Components map[string]string

	// ConsoleLevel, when set, also logs to stderr at that level.
	ConsoleLevel string
}

// outputs is what one component currently writes to. Empty drops output.
type outputs []*log.Logger

// Logger logs for one component.
type Logger struct {
	component string
	fields    []interface{}
	out       *atomic.Pointer[outputs]
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) { l.emit(LevelDebug, msg, keyvals) }

// Info logs at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) { l.emit(LevelInfo, msg, keyvals) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) { l.emit(LevelWarn, msg, keyvals) }

// Error logs at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) { l.emit(LevelError, msg, keyvals) }

// Component returns the component name.
func (l *Logger) Component() string { return l.component }

// With returns a logger that adds keyvals to every entry.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(keyvals))
	fields = append(fields, l.fields...)
	fields = append(fields, keyvals...)
	return &Logger{component: l.component, fields: fields, out: l.out}
}

func (l *Logger) emit(level Level, msg string, keyvals []interface{}) {
	out := *l.out.Load()
	if len(out) == 0 {
		return
	}
	if len(l.fields) > 0 {
		keyvals = append(append(make([]interface{}, 0, len(l.fields)+len(keyvals)), l.fields...), keyvals...)
	}
	for _, o := range out {
		o.Log(level, msg, keyvals...)
	}
}

// levels is a parsed Config.
type levels struct {
	file       Level
	components map[string]Level
	console    *Level
}

func parseLevels(cfg Config) (levels, error) {
	var lv levels
	var err error
	if lv.file, err = ParseLevel(cfg.Level); err != nil {
		return lv, fmt.Errorf("parsing log level: %w", err)
	}
	lv.components = make(map[string]Level, len(cfg.Components))
	for comp, name := range cfg.Components {
		l, err := ParseLevel(name)
		if err != nil {
			return lv, fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		lv.components[comp] = l
	}
	if cfg.ConsoleLevel != "" {
		l, err := ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return lv, fmt.Errorf("parsing console level: %w", err)
		}
		lv.console = &l
	}
	return lv, nil
}

var std = struct {
	mu      sync.Mutex
	writer  *RotatingWriter
	levels  levels
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Init opens the log file and points every logger at it.
func Init(cfg Config) error {
	lv, err := parseLevels(cfg)
	if err != nil {
		return err
	}
	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}

	std.mu.Lock()
	defer std.mu.Unlock()

	if err := shutdownLocked(); err != nil {
		return err
	}
	w, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}
	std.writer = w
	std.levels = lv
	for _, l := range std.loggers {
		attachLocked(l)
	}
	return nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	std.mu.Lock()
	defer std.mu.Unlock()

	if l, ok := std.loggers[component]; ok {
		return l
	}
	l := &Logger{component: component, out: new(atomic.Pointer[outputs])}
	attachLocked(l)
	std.loggers[component] = l
	return l
}

// Close detaches every logger and closes the log file.
func Close() error {
	std.mu.Lock()
	defer std.mu.Unlock()
	return shutdownLocked()
}

func shutdownLocked() error {
	if std.writer == nil {
		return nil
	}
	w := std.writer
	std.writer = nil
	std.levels = levels{}
	for _, l := range std.loggers {
		attachLocked(l)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

func attachLocked(l *Logger) {
	if std.writer == nil {
		l.out.Store(&outputs{})
		return
	}

	level := std.levels.file
	if override, ok := std.levels.components[l.component]; ok {
		level = override
	}
	out := outputs{log.NewWithOptions(std.writer, log.Options{
		Level:           level,
		Prefix:          l.component,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})}
	if std.levels.console != nil {
		out = append(out, log.NewWithOptions(os.Stderr, log.Options{
			Level:           *std.levels.console,
			Prefix:          l.component,
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
		}))
	}
	l.out.Store(&out)
}

// DefaultLogPath returns $XDG_STATE_HOME/filehasher/filehasher.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "filehasher", "filehasher.log")
}

// DefaultConfig logs at info to DefaultLogPath with default rotation.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
