// Package logger provides the structured slog logger used across the relay.
// Logs are written in JSON to a size-rotated file under the data directory
// and mirrored to stderr.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog.Logger that writes to <logDir>/pvebridge.log with
// rotation, and to stderr. The directory is created if it does not exist.
func New(logDir string, level slog.Level) (*slog.Logger, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory %q: %w", logDir, err)
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "pvebridge.log"),
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	handler := slog.NewJSONHandler(io.MultiWriter(rotated, os.Stderr), &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}
