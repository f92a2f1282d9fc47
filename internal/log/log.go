// Package log configures the process-wide zerolog console writer and hands
// out child loggers for services to hold as fields, following
// cmd/cryptorun/main.go's ConsoleWriter/RFC3339 init pattern. Domain code
// never imports zerolog/log directly; it takes a zerolog.Logger.
package log

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger with a console writer and
// RFC3339 timestamps, and returns a component-scoped child logger.
func Init(component string, debug bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02T15:04:05Z07:00"}
	logger := zerolog.New(writer).With().Timestamp().Str("component", component).Logger().Level(level)
	log.Logger = logger
	return logger
}

// Component returns a named child logger for a subsystem, without touching
// the global logger.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
