// Package logging provides helpers for structured, colorized logging across kindctl.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Level represents a structured log level used by kindctl.
type Level slog.Level

const (
	// LevelDebug represents the debug logging level.
	LevelDebug Level = Level(slog.LevelDebug)
	// LevelInfo represents the informational logging level.
	LevelInfo Level = Level(slog.LevelInfo)
	// LevelWarn represents the warning logging level.
	LevelWarn Level = Level(slog.LevelWarn)
	// LevelError represents the error logging level.
	LevelError Level = Level(slog.LevelError)
)

// Format selects the slog handler.
type Format string

const (
	// FormatTint renders colorized human-readable lines.
	FormatTint Format = "tint"
	// FormatText renders logfmt-style lines.
	FormatText Format = "text"
	// FormatJSON renders one JSON object per line.
	FormatJSON Format = "json"
)

// ParseLevel converts a textual log level into a Level value.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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

// ParseFormat converts a textual handler name into a Format.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return FormatTint, nil
	case FormatTint, FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (expected tint, text or json)", value)
	}
}

// NewLogger constructs a slog.Logger configured with a tint handler and level.
func NewLogger(w io.Writer, level Level) *slog.Logger {
	return NewLoggerWithFormat(w, level, FormatTint)
}

// NewLoggerWithFormat constructs a slog.Logger with the handler selected by format.
func NewLoggerWithFormat(w io.Writer, level Level, format Format) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.Level(level)})
	case FormatText:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.Level(level)})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level: slog.Level(level),
		})
	}

	return slog.New(handler)
}
