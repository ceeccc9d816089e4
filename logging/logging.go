package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const EnvLogLevel = "SNAKE_LOG_LEVEL"

type Config struct {
	Level   string `toml:"level"`
	NoColor bool   `toml:"no_color"`
}

// New builds the console logger handed to every component. SNAKE_LOG_LEVEL
// overrides the configured level.
func New(app string, cfg Config) zerolog.Logger {
	return NewWithWriter(os.Stdout, app, cfg)
}

func NewWithWriter(w io.Writer, app string, cfg Config) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.NoColor,
	}
	level, ok := ParseLevel(os.Getenv(EnvLogLevel))
	if !ok {
		level, ok = ParseLevel(cfg.Level)
		if !ok {
			level = zerolog.InfoLevel
		}
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger()
}

func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
