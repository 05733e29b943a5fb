// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bmease/race-spoilers/pkg/config"
)

// New returns a console logger on stderr, or a no-op logger when logging
// is disabled. An unknown level falls back to warn.
func New(cfg config.Config) zerolog.Logger {
	return NewWriter(cfg, os.Stderr)
}

// NewWriter is New with an explicit destination.
func NewWriter(cfg config.Config, w io.Writer) zerolog.Logger {
	if !cfg.Log {
		return zerolog.Nop()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
