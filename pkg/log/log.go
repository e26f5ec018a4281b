// Package log configures the process-wide slog logger. Components never hold
// the root logger directly; they derive theirs through WithModule so every
// record carries the emitting module.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler on stderr at the given level. Level names
// follow slog ("debug", "info", "warn", "error", case-insensitive); anything
// unrecognized falls back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a logger tagged with the module name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
