// Package logging builds the zerolog logger shared by the commands.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "RIT128_LOG_LEVEL"
	EnvLogNoColor = "RIT128_LOG_NOCOLOR"
	EnvLogJSON    = "RIT128_LOG_JSON"
)

// Config selects the logger output.
type Config struct {
	Level   zerolog.Level
	NoColor bool
	JSON    bool
}

// DefaultConfig logs at info level to a colored console.
func DefaultConfig() Config {
	return Config{Level: zerolog.InfoLevel}
}

// New returns a logger for app configured from the environment, and installs
// it as the global zerolog logger.
func New(app string) zerolog.Logger {
	cfg := DefaultConfig()
	ApplyEnv(&cfg, os.Getenv)
	logger := NewWriter(os.Stderr, app, cfg)
	log.Logger = logger
	return logger
}

// NewWriter returns a logger for app writing to w.
func NewWriter(w io.Writer, app string, cfg Config) zerolog.Logger {
	out := w
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}
	return zerolog.New(out).Level(cfg.Level).With().Timestamp().Str("app", app).Logger()
}

// ApplyEnv overrides cfg with the variables getenv returns. Unparseable
// values are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if lvl, ok := parseLevel(getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(getenv(EnvLogJSON)); ok {
		cfg.JSON = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
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

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
