package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kstaniek/twse-ingest/internal/logging"
)

// setupLogger builds the process-wide logger. When logFileDir is set, a
// timestamped log file is created under it (directory created if absent)
// and every record is written both there and to stderr, per the original
// tool's append-mode "logger/" directory convention. The returned close
// function must be called during shutdown; it is a no-op when no file was
// opened.
func setupLogger(format, level, logFileDir string) (*slog.Logger, func() error, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }

	if logFileDir != "" {
		if err := os.MkdirAll(logFileDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		name := fmt.Sprintf("twse-ingest-%s.log", time.Now().Format("20060102-150405"))
		f, err := os.OpenFile(filepath.Join(logFileDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = f.Close
	}

	l := logging.New(format, lvl, w).With("app", "twse-ingest")
	logging.Set(l)
	return l, closeFn, nil
}
