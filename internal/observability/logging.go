package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// NewLogger returns a structured JSON logger for one component, writing to
// stdout. The level comes from OPT_LOG_LEVEL and defaults to info.
func NewLogger(component string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(logLevel()).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func logLevel() zerolog.Level {
	switch os.Getenv("OPT_LOG_LEVEL") {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
