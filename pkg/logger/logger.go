package logger

import (
	"log/slog"
	"os"
)

// New builds the process logger. Local and dev environments get readable
// text output at debug level; everything else emits JSON for the log
// pipeline.
func New(env string) *slog.Logger {
	switch env {
	case "local", "dev":
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
