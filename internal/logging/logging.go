package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger.
// level is one of debug, info, warn, error (default info); debug forces debug level.
func Init(level string, debug bool) {
	switch {
	case debug || level == "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case level == "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case level == "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
}
