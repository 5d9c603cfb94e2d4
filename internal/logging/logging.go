// Package logging configures the process logger. The level can be switched
// between info and debug at runtime by the debug mode setting.
package logging

import (
	"io"
	"log/slog"
	"os"
)

var level = new(slog.LevelVar)

// New creates a text logger writing to w (stdout when nil) and installs it as the default
func New(w io.Writer, debug bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	SetDebug(debug)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// SetDebug switches every logger created by New
func SetDebug(on bool) {
	if on {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// DebugEnabled reports the current mode
func DebugEnabled() bool {
	return level.Level() <= slog.LevelDebug
}

// Component returns a child logger tagged with the component name
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// Discard is a logger that drops everything, for tests
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
