// Package logging provides the leveled, component-tagged line logger used
// across the editor, backed by a rotating log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/msageha/challenge_editor/internal/model"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes "<RFC3339> <LEVEL> <component>: <message>" lines.
// A nil *Logger discards everything.
type Logger struct {
	out       *log.Logger
	level     LogLevel
	component string
	now       func() time.Time
}

func New(w io.Writer, level LogLevel) *Logger {
	return &Logger{out: log.New(w, "", 0), level: level, now: time.Now}
}

// Discard returns a logger that drops all output.
func Discard() *Logger {
	return New(io.Discard, LogLevelError+1)
}

// With returns a logger tagged with a component name.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	c := *l
	c.component = component
	return &c
}

func (l *Logger) Level() LogLevel {
	if l == nil {
		return LogLevelError + 1
	}
	return l.level
}

func (l *Logger) Log(level LogLevel, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	component := l.component
	if component == "" {
		component = "chedit"
	}
	l.out.Printf("%s %s %s: %s", l.now().Format(time.RFC3339), level, component, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.Log(LogLevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Log(LogLevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Log(LogLevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Log(LogLevelError, format, args...) }

// NewFileWriter returns a size-rotated writer for the configured log file.
// Relative paths are resolved against baseDir.
func NewFileWriter(baseDir string, cfg model.LoggingConfig) (io.WriteCloser, error) {
	path := cfg.File
	if path == "" {
		path = filepath.Join("logs", "chedit.log")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}, nil
}

// FromConfig builds a Logger writing to the rotating file described by cfg.
func FromConfig(baseDir string, cfg model.LoggingConfig) (*Logger, io.Closer, error) {
	w, err := NewFileWriter(baseDir, cfg)
	if err != nil {
		return nil, nil, err
	}
	return New(w, ParseLogLevel(cfg.Level)), w, nil
}
