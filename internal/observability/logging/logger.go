// Package logging builds the JSON slog loggers used by every binary.
// Messages are event names ("router_route", "retry_attempt"); details go in
// attributes.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// NewJSONLogger logs to stdout.
func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

// NewJSONLoggerTo writes to w. Stdio transports log to stderr since stdout
// carries protocol frames.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	lvl := ParseLevel(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   lvl <= slog.LevelDebug,
		ReplaceAttr: replaceAttr,
	})
	return slog.New(handler).With("service", service)
}

// Install builds a logger and makes it the process default, so components
// constructed without a logger share the same sink.
func Install(w io.Writer, service, level string) *slog.Logger {
	logger := NewJSONLoggerTo(w, service, level)
	slog.SetDefault(logger)
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceAttr renders durations as fractional milliseconds and errors as
// their message.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch v := a.Value.Any().(type) {
	case time.Duration:
		return slog.Float64(a.Key, float64(v.Microseconds())/1000.0)
	case error:
		return slog.String(a.Key, v.Error())
	}
	return a
}
