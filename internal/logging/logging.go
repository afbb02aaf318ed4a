// Package logging builds the daemon's slog logger from config. Output
// goes to stderr so CLI command output on stdout stays clean.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a logger at the given level ("debug", "info", "warn",
// "error") with text or json formatting. Unknown values fall back to
// info/text rather than failing startup over a logging knob.
func New(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
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
