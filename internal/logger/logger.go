package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. format is "console" for human-readable
// output or "json".
func New(out io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
	}

	w := out
	switch format {
	case "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Logger{}, fmt.Errorf("unknown log format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Caller().Logger(), nil
}
