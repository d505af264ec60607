package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls the global logger.
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // "console" or "json"
	Out    io.Writer
}

// Setup configures the global zerolog logger and returns it. Unknown levels fall back
// to info.
func Setup(opts Options) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if strings.EqualFold(opts.Format, "json") {
		log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).Level(lvl)
	}
	return log.Logger
}

// FromEnv reads LOG_LEVEL and LOG_FORMAT.
func FromEnv() Options {
	return Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}
}
