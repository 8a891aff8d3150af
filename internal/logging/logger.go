package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON logger on stdout. attrs are attached to every record,
// typically the service name and environment.
func New(level string, attrs ...any) *slog.Logger {
	return NewWithWriter(os.Stdout, level, attrs...)
}

// NewWithWriter is New with an explicit destination. Unknown levels fall back
// to info.
func NewWithWriter(w io.Writer, level string, attrs ...any) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	logger := slog.New(handler)
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Discard returns a logger that drops all output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
