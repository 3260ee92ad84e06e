// Package logging builds the service-wide zerolog logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenride/seed-engine/config"
)

// New returns the root logger for the service. Components derive their own
// loggers from it with With().
func New(cfg config.Log) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().
		Timestamp().
		Str("service", "seed-engine").
		Logger()
}
