// Package logging configures the engine's structured and human-readable
// loggers: JSON to a rotating file for machine consumption, text to
// stderr for a human at a terminal.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger *slog.Logger
	humanLogger      *slog.Logger
)

// Trace and Fatal extend slog's standard level range.
const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// Options configures Init.
type Options struct {
	// FilePath is where structured JSON logs are written. Empty disables
	// file logging (structured logs go to stdout instead).
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
}

func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, _ := a.Value.Any().(slog.Level)
		if name, ok := levelNames[level]; ok {
			a.Value = slog.StringValue(name)
		}
	}
	return a
}

// Init wires the package-level loggers. Safe to call once at process
// startup; not safe to call concurrently with logging calls.
func Init(opts Options) {
	if opts.Level == 0 {
		opts.Level = slog.LevelInfo
	}

	var structuredWriter io.Writer = os.Stdout
	if opts.FilePath != "" {
		structuredWriter = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    maxOr(opts.MaxSizeMB, 20),
			MaxBackups: maxOr(opts.MaxBackups, 5),
			MaxAge:     maxOr(opts.MaxAgeDays, 28),
			Compress:   true,
		}
	}

	structuredLogger = slog.New(slog.NewJSONHandler(structuredWriter, &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceLevel,
	}))

	humanLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceLevel,
	}))

	slog.SetDefault(structuredLogger)
}

func maxOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ForComponent returns a structured logger tagged with "component".
// Falls back to slog.Default if Init has not run yet, so packages can
// hold a logger before the application wires logging explicitly (e.g.
// in tests).
func ForComponent(component string) *slog.Logger {
	logger := structuredLogger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}

// Human returns the human-readable (text, stderr) logger, falling back
// to slog.Default if Init has not run.
func Human() *slog.Logger {
	if humanLogger == nil {
		return slog.Default()
	}
	return humanLogger
}
