// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/shmbridge/internal/env"
	"github.com/ekisa-team/shmbridge/internal/xfs"
)

// Option configures the logger.
type Option func(*options)

type options struct {
	logToFile bool
	logFile   string
	level     slog.Level
}

// WithLogToFile enables mirroring log output to a rotated file.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the log file path used when file logging is enabled.
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFile = path
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// New creates a logger for the given environment: a tinted console handler
// in development, JSON in production, optionally mirrored to a rotated file.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := &options{
		logFile: "logs/shmbridge.log",
		level:   slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(o)
	}

	out := io.Writer(os.Stderr)
	if o.logToFile {
		if err := xfs.EnsureParentDir(o.logFile); err != nil {
			slog.Warn("Failed to create log directory", "path", o.logFile, "error", err)
		}
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}

	var handler slog.Handler
	if environment == env.Production {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: o.level})
	} else {
		handler = tint.NewHandler(out, &tint.Options{
			Level:      o.level,
			TimeFormat: time.Kitchen,
		})
	}

	return slog.New(handler)
}
