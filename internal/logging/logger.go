// Package logging builds the service's zerolog logger and helpers for keeping
// personal data out of log lines.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger at the given level ("debug", "info", ...). Production
// writes JSON to stdout; other environments use the console writer.
func New(level, env string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, env)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if env != "production" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "registration").Logger()
}

// MaskPhone keeps the last four characters of a contact number.
func MaskPhone(phone string) string {
	const keep = 4
	if len(phone) <= keep {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-keep) + phone[len(phone)-keep:]
}
