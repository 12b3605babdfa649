// Package logging configures zerolog for the command-line binaries
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global logger at a console writer on w with the given
// level and returns it. An empty level means info.
func Setup(w io.Writer, level string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return zerolog.Nop(), err
		}
		lvl = parsed
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
	log.Logger = logger
	return logger, nil
}

// Fatal logs err and exits
func Fatal(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	os.Exit(1)
}
