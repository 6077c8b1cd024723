// Package logging builds the structured logger shared by the API, the
// migrator and the mail worker.  Output is JSON unless LOG_FORMAT=text.
//
// Never log passwords, session tokens or reset tokens.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a logger writing to stdout at the given level ("debug",
// "info", "warn", "error") and format ("json" or "text").  Every record
// carries service=<service>.
func New(service, level, format string) *slog.Logger {
	return newWithWriter(os.Stdout, service, level, format)
}

func newWithWriter(w io.Writer, service, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	handler = handler.WithAttrs([]slog.Attr{slog.String("service", service)})
	return slog.New(handler)
}

// parseLevel defaults to info for unrecognised names.
func parseLevel(level string) slog.Level {
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

// Discard returns a logger that drops everything.  Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
