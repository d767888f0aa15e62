// Package logging provides leveled, component-scoped logging for tidy,
// built on charmbracelet/log.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "debug"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("cleaner")
//	logger.Info("deleted", "path", "/home/user/Downloads/old.zip")
//
// Loggers obtained before Init write nowhere; Init rewires them in place.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// TraceLevel is the charmbracelet/log level used for trace records.
// It sits below log.DebugLevel, which is -4.
const TraceLevel = log.Level(-8)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) toCharmLevel() log.Level {
	switch l {
	case LevelTrace:
		return TraceLevel
	case LevelDebug:
		return log.DebugLevel
	case LevelInfo:
		return log.InfoLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.WarnLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelWarn, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the minimum level written to the console.
	Level string

	// Console receives human-readable records. Nil means os.Stderr.
	Console io.Writer

	// Path is an optional log file. Empty disables file logging.
	Path string

	// FileLevel is the minimum level written to Path. Empty uses Level.
	FileLevel string

	// Rotation configures rotation of the log file.
	Rotation RotationConfig
}

// sinks holds the charm loggers a Logger currently writes to.
type sinks struct {
	console *log.Logger
	file    *log.Logger
}

// Logger is a component logger. It is safe for concurrent use.
type Logger struct {
	component string
	keyvals   []interface{}
	out       atomic.Pointer[sinks]
}

// Trace logs a per-entry detail record.
func (l *Logger) Trace(msg string, keyvals ...interface{}) {
	l.log(TraceLevel, msg, keyvals...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.log(log.DebugLevel, msg, keyvals...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.log(log.InfoLevel, msg, keyvals...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.log(log.WarnLevel, msg, keyvals...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.log(log.ErrorLevel, msg, keyvals...)
}

func (l *Logger) log(level log.Level, msg string, keyvals ...interface{}) {
	s := l.out.Load()
	if s == nil {
		return
	}
	if len(l.keyvals) > 0 {
		keyvals = append(append([]interface{}{}, l.keyvals...), keyvals...)
	}
	if s.console != nil {
		s.console.Log(level, msg, keyvals...)
	}
	if s.file != nil {
		s.file.Log(level, msg, keyvals...)
	}
}

// With returns a logger that adds keyvals to every record.
// The returned logger is not rewired by a later Init.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	child := &Logger{
		component: l.component,
		keyvals:   append(append([]interface{}{}, l.keyvals...), keyvals...),
	}
	child.out.Store(l.out.Load())
	return child
}

// state holds the global logging state.
type state struct {
	mu           sync.Mutex
	initialized  bool
	consoleLevel Level
	fileLevel    Level
	console      io.Writer
	writer       *RotatingWriter
	loggers      map[string]*Logger
}

var globalState = &state{
	loggers: make(map[string]*Logger),
}

// Init configures the logging system. It is meant to be called once at
// startup, before any component starts working.
func Init(cfg Config) error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	fileLevel := level
	if cfg.FileLevel != "" {
		if fileLevel, err = ParseLevel(cfg.FileLevel); err != nil {
			return fmt.Errorf("parsing file log level: %w", err)
		}
	}

	var writer *RotatingWriter
	if cfg.Path != "" {
		if writer, err = NewRotatingWriter(cfg.Path, cfg.Rotation); err != nil {
			return fmt.Errorf("creating log writer: %w", err)
		}
	}

	if globalState.writer != nil {
		if err := globalState.writer.Close(); err != nil {
			return fmt.Errorf("closing existing writer: %w", err)
		}
	}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	globalState.initialized = true
	globalState.consoleLevel = level
	globalState.fileLevel = fileLevel
	globalState.console = console
	globalState.writer = writer

	for _, logger := range globalState.loggers {
		logger.out.Store(newSinks(logger.component))
	}

	return nil
}

// Get returns the logger for the given component.
func Get(component string) *Logger {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if logger, ok := globalState.loggers[component]; ok {
		return logger
	}

	logger := &Logger{component: component}
	logger.out.Store(newSinks(component))
	globalState.loggers[component] = logger
	return logger
}

// newSinks builds the charm loggers for a component.
// Must be called with globalState.mu held.
func newSinks(component string) *sinks {
	if !globalState.initialized {
		return &sinks{}
	}

	s := &sinks{
		console: log.NewWithOptions(globalState.console, log.Options{
			Level:           globalState.consoleLevel.toCharmLevel(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		}),
	}
	s.console.SetStyles(styles())

	if globalState.writer != nil {
		s.file = log.NewWithOptions(globalState.writer, log.Options{
			Level:           globalState.fileLevel.toCharmLevel(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		})
		s.file.SetStyles(styles())
	}

	return s
}

// styles returns the default charm styles extended with a trace label.
func styles() *log.Styles {
	st := log.DefaultStyles()
	st.Levels[TraceLevel] = lipgloss.NewStyle().
		SetString("TRAC").
		Bold(true).
		MaxWidth(4).
		Foreground(lipgloss.Color("245"))
	return st
}

// Close flushes and closes the log file and silences all loggers.
func Close() error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if !globalState.initialized {
		return nil
	}

	globalState.initialized = false
	for _, logger := range globalState.loggers {
		logger.out.Store(&sinks{})
	}

	if globalState.writer != nil {
		err := globalState.writer.Close()
		globalState.writer = nil
		if err != nil {
			return fmt.Errorf("closing log writer: %w", err)
		}
	}

	return nil
}
