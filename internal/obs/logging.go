// Package obs contains observability utilities such as logging.
package obs

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global structured logger used by the updater.
//
// Logger is exported to allow other packages to use it for logging. It starts
// out as slog's default logger so packages can log before InitLogger runs.
var Logger = slog.Default()

var out io.Writer = os.Stdout

// SetOutput redirects the JSON log stream. Call before InitLogger.
func SetOutput(w io.Writer) { out = w }

// InitLogger initializes the global Logger with a JSON handler at the given level
// (debug, info, warn, error). Unknown levels fall back to info.
func InitLogger(level string) {
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(level)})
	Logger = slog.New(h)
}

// ParseLevel maps a level name to a slog.Level.
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
