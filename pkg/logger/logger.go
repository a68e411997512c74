// Package logger builds the process logger from the logging settings.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wurt83ow/netalerte-client/pkg/config"
)

// ParseLevel maps a level name to zerolog. Unknown names mean info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(name) {
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

// New returns a logger writing to cfg.File (appended) or stderr. The closer
// releases the file and is a no-op for stderr. The logger also becomes the
// global zerolog logger.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	l := NewWithWriter(cfg, out)
	log.Logger = l
	return l, closer, nil
}

// NewWithWriter builds the logger on an arbitrary writer.
func NewWithWriter(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: out != os.Stderr}
	}
	return zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
