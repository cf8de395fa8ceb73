// Package logging builds the process-wide structured logger. Everything the
// tracker emits, poll cycles and export requests alike, goes through one JSON
// stream on stdout so log shippers need no special casing.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON logger filtered at the given level.
func New(level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(h)
}

// ParseLevel maps a configuration string to a slog level. Unknown values fall
// back to info rather than failing, so a typo in LOG_LEVEL cannot stop the
// tracker.
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

// MaskToken reduces a session token to its first and last three characters.
// Short tokens are fully masked since three characters each side would leak
// most of them.
func MaskToken(tok string) string {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return ""
	}
	if len(tok) <= 8 {
		return "***"
	}
	return tok[:3] + "***" + tok[len(tok)-3:]
}
