// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Config controls output format and verbosity.
type Config struct {
	Format    string // json | console | auto
	Level     string // trace | debug | info | warn | error
	Component string // stamped on every line when set
}

// Init replaces the global logger. Call once at startup, before anything
// logs.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := zerolog.New(selectWriter(cfg.Format)).With().Timestamp()
	if cfg.Component != "" {
		logger = logger.Str("component", cfg.Component)
	}
	log.Logger = logger.Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
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

// selectWriter picks JSON for pipes and a human console writer for
// terminals unless the format is forced.
func selectWriter(format string) io.Writer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return os.Stderr
	case "console":
		return consoleWriter()
	default: // auto
		if isatty.IsTerminal(os.Stderr.Fd()) {
			return consoleWriter()
		}
		return os.Stderr
	}
}

func consoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
}
