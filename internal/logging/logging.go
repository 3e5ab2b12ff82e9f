// Package logging installs a colored slog handler as the default logger.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures colored logging to w at the named level
// (debug, info, warn, error; anything else means info).
func Setup(w io.Writer, level string) {
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      ParseLevel(level),
			TimeFormat: time.Kitchen,
		}),
	))
}

// ParseLevel maps a level name to a slog.Level
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
