// Package logger provides the small leveled logger shared by the assistant packages.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel maps a level name to a Level. Unknown names fall back to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the logging interface used by the library.
type Logger interface {
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Debug(msg string, obj any)
	Error(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(string, any)  {}
func (NopLogger) Warn(string, any)  {}
func (NopLogger) Debug(string, any) {}
func (NopLogger) Error(string, any) {}

// Option tweaks a writer logger.
type Option func(*writerLogger)

// WithLevel drops entries below min.
func WithLevel(min Level) Option {
	return func(l *writerLogger) {
		l.min = min
	}
}

// WithComponent tags every entry with a component name.
func WithComponent(name string) Option {
	return func(l *writerLogger) {
		l.component = strings.TrimSpace(name)
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *writerLogger) {
		if now != nil {
			l.now = now
		}
	}
}

type writerLogger struct {
	mu        *sync.Mutex
	w         io.Writer
	min       Level
	component string
	now       func() time.Time
}

// NewWriterLogger builds a logger that writes one line per entry to w.
func NewWriterLogger(w io.Writer, opts ...Option) Logger {
	l := &writerLogger{
		mu:  &sync.Mutex{},
		w:   w,
		min: LevelDebug,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Named returns a copy of l tagged with component. Loggers that are not
// writer loggers are returned unchanged.
func Named(l Logger, component string) Logger {
	wl, ok := l.(*writerLogger)
	if !ok {
		return l
	}
	cp := *wl
	if cp.component != "" {
		cp.component = cp.component + "." + component
	} else {
		cp.component = component
	}
	return &cp
}

func (l *writerLogger) write(level Level, msg string, obj any) {
	if l.w == nil || level < l.min {
		return
	}

	var sb strings.Builder
	sb.WriteString(l.now().Format(time.RFC3339))
	sb.WriteString(fmt.Sprintf(" %-5s ", level.String()))
	if l.component != "" {
		sb.WriteString("[" + l.component + "] ")
	}
	sb.WriteString(msg)
	if obj != nil {
		b, err := json.Marshal(obj)
		if err != nil {
			sb.WriteString(fmt.Sprintf(" obj=%q", fmt.Sprintf("%+v", obj)))
		} else {
			sb.WriteString(" obj=")
			sb.Write(b)
		}
	}
	sb.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, sb.String())
}

func (l *writerLogger) Info(msg string, obj any)  { l.write(LevelInfo, msg, obj) }
func (l *writerLogger) Warn(msg string, obj any)  { l.write(LevelWarn, msg, obj) }
func (l *writerLogger) Debug(msg string, obj any) { l.write(LevelDebug, msg, obj) }
func (l *writerLogger) Error(msg string, obj any) { l.write(LevelError, msg, obj) }

// Debug writes a debug log when enabled and logger is non-nil.
func Debug(enabled bool, logger Logger, msg string, obj any) {
	if !enabled || logger == nil {
		return
	}
	logger.Debug(msg, obj)
}

// Debugf is a compatibility helper for format-style debug logging.
func Debugf(enabled bool, logger Logger, format string, args ...any) {
	Debug(enabled, logger, fmt.Sprintf(format, args...), nil)
}
