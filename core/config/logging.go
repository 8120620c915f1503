package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger builds a zerolog logger writing to w in the configured format.
func (l LogConfig) Logger(w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if l.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(l.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("config: log level: %w", err)
		}
		level = parsed
	}

	out := w
	if strings.ToLower(l.Format) != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
