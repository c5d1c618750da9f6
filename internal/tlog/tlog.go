/*
Package tlog builds the process logger on top of github.com/lmittmann/tint.
*/
package tlog

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// ParseLevel maps a level name to a slog level. An empty name falls back to
// LOG_LEVEL; anything unknown is info.
func ParseLevel(level string) slog.Level {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	switch strings.ToLower(level) {
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

// New instantiates the logger writing to stderr.
func New(level string, colorize bool) *slog.Logger {
	return NewWriter(os.Stderr, level, colorize)
}

func NewWriter(w io.Writer, level string, colorize bool) *slog.Logger {
	if os.Getenv("LOG_COLORIZE") != "" {
		colorize = true
	}

	opts := &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    !colorize,
	}

	return slog.New(tint.NewHandler(w, opts))
}
