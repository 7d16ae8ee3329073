// Package logging builds the slog loggers used across meow-studio.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meow-stack/meow-studio/internal/config"
)

// NewFromConfig creates a logger from configuration. When a log file is
// configured, records go to both stderr and the file and the returned
// closer must be closed by the caller.
func NewFromConfig(cfg *config.Config, baseDir string) (*slog.Logger, io.Closer, error) {
	level := parseLevel(cfg.Logging.Level)
	if cfg.Logging.File == "" {
		return slog.New(newHandler(cfg.Logging.Format, os.Stderr, level)), nil, nil
	}

	file, err := openLogFile(cfg.LogFile(baseDir))
	if err != nil {
		return nil, nil, err
	}
	w := io.MultiWriter(os.Stderr, file)
	return slog.New(newHandler(cfg.Logging.Format, w, level)), file, nil
}

// NewForServer creates a logger for a long-running server session. Records
// are written only to <logs_dir>/serve.log so the host's stderr stays clean.
func NewForServer(cfg *config.Config, baseDir string) (*slog.Logger, io.Closer, error) {
	file, err := openLogFile(filepath.Join(cfg.LogsDir(baseDir), "serve.log"))
	if err != nil {
		return nil, nil, err
	}
	handler := newHandler(cfg.Logging.Format, file, parseLevel(cfg.Logging.Level))
	return slog.New(handler).With("session_pid", os.Getpid()), file, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// NewDefault creates a default logger writing to stderr.
func NewDefault() *slog.Logger {
	return NewWithLevel(slog.LevelInfo)
}

// NewForTest creates a silent logger for tests.
func NewForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// NewWithLevel creates a JSON logger on stderr with the specified level.
func NewWithLevel(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func parseLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format config.LogFormat, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatText {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// WithFields returns a logger with the given fields added.
func WithFields(logger *slog.Logger, fields ...any) *slog.Logger {
	return logger.With(fields...)
}

// WithComponent returns a logger scoped to a component template.
func WithComponent(logger *slog.Logger, templateID, name string) *slog.Logger {
	return logger.With("template_id", templateID, "component", name)
}

// WithCanvas returns a logger scoped to an editor canvas.
func WithCanvas(logger *slog.Logger, canvasID string) *slog.Logger {
	return logger.With("canvas", canvasID)
}
