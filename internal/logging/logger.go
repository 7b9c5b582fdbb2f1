// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog.Logger writing to stdout and a size-rotated file
// under dir. If the directory cannot be created the file sink is skipped and
// logs go to stdout only.
func New(level, dir string) *slog.Logger {
	var w io.Writer = os.Stdout

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			fileSink := &lumberjack.Logger{
				Filename:   filepath.Join(dir, "arbbot.log"),
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
			w = io.MultiWriter(os.Stdout, fileSink)
		}
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: Level(level),
	}))
}

// Level parses a config log level string, defaulting to info.
func Level(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
