package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process-wide base logger. Dev environments get a console
// writer, everything else ships JSON.
func New(env, service string) zerolog.Logger {
	var logger zerolog.Logger
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.With().
		Timestamp().
		Str("service", service).
		Logger()
}
