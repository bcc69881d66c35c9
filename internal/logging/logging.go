package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New builds the process logger. level is a slog level name ("DEBUG", "info",
// "WARN+2"); format is "json" or "text". Unparseable levels fall back to INFO.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
