package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// LogLevel is the minimum severity that is written.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ParseLevel converts a configuration string to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SlogLogger implements Logger on top of a slog.Logger.
type SlogLogger struct {
	inner *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

// NewSlogLogger creates a JSON logger writing to w. Timestamps are rendered in
// loc, or UTC when loc is nil.
func NewSlogLogger(w io.Writer, level LogLevel, loc *time.Location) *SlogLogger {
	return &SlogLogger{inner: slog.New(slog.NewJSONHandler(w, handlerOptions(level, loc)))}
}

// NewConsoleLogger creates a human readable text logger writing to w.
func NewConsoleLogger(w io.Writer, level LogLevel) *SlogLogger {
	return &SlogLogger{inner: slog.New(slog.NewTextHandler(w, handlerOptions(level, nil)))}
}

// New picks the handler by format name ("json" or "text").
func New(w io.Writer, format string, level LogLevel) *SlogLogger {
	if strings.EqualFold(format, "text") {
		return NewConsoleLogger(w, level)
	}
	return NewSlogLogger(w, level, nil)
}

func handlerOptions(level LogLevel, loc *time.Location) *slog.HandlerOptions {
	if loc == nil {
		loc = time.UTC
	}
	return &slog.HandlerOptions{
		Level: level.slogLevel(),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.TimeValue(a.Value.Time().In(loc))
			}
			return a
		},
	}
}

func (l *SlogLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *SlogLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *SlogLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *SlogLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{inner: l.inner.With(toArgs(fields)...)}
}

func (l *SlogLogger) Module(name string) Logger {
	return &SlogLogger{inner: l.inner.With(slog.String("module", name))}
}

func (l *SlogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.inner.Enabled(ctx, level) {
		return
	}
	l.inner.LogAttrs(ctx, level, msg, toAttrs(fields)...)
}

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func toArgs(fields []Field) []any {
	args := make([]any, 0, len(fields))
	for _, a := range toAttrs(fields) {
		args = append(args, a)
	}
	return args
}

// Silent returns a logger that discards everything.
func Silent() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, nil)
}
