package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the service logger: JSON to stdout, unix timestamps, level
// from LOG_LEVEL, service name on every record.
func New(serviceName string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := parseLevel(os.Getenv("LOG_LEVEL"))
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
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
