// Package logging builds the zerolog logger shared by the server and keeps
// recent output in memory for the /logs endpoint.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ParseLevel maps a config string to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a logger writing to stdout and every extra writer.
// Stdout gets console formatting when it is a terminal; extra writers get JSON lines.
func New(level string, extra ...io.Writer) zerolog.Logger {
	var stdout io.Writer = os.Stdout
	if isatty.IsTerminal(os.Stdout.Fd()) {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	}

	writers := append([]io.Writer{stdout}, extra...)
	return NewWithWriter(level, zerolog.MultiLevelWriter(writers...))
}

// NewWithWriter returns a logger writing JSON lines to w
func NewWithWriter(level string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}
