package util

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger at the requested level, falling back to info.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil { lvl = zerolog.InfoLevel }
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// WorkerLogger tags a logger with the mailbox symbol a gate worker owns.
func WorkerLogger(base zerolog.Logger, symbol string) zerolog.Logger {
	return base.With().Str("worker", symbol).Logger()
}
