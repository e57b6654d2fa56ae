// Package logging builds the zerolog loggers used by the sscp binaries.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/ZygoteCode/SSCP/internal/cmdutil"
	"github.com/rs/zerolog"
)

// Environment overrides, read with the SSCP_ prefix.
const (
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvLogNoColor   = "LOG_NOCOLOR"
	EnvLogTimestamp = "LOG_TIMESTAMP"
)

type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

type Config struct {
	Level     zerolog.Level
	Format    Format
	NoColor   bool
	Timestamp bool
}

func DefaultConfig() Config {
	return Config{Level: zerolog.InfoLevel, Format: FormatConsole, Timestamp: true}
}

// ApplyEnv overlays SSCP_LOG_* values from env. Unparseable values are ignored.
func ApplyEnv(cfg Config, env cmdutil.Env) Config {
	if lvl, ok := ParseLevel(env.String(EnvLogLevel, "")); ok {
		cfg.Level = lvl
	}
	if f, ok := ParseFormat(env.String(EnvLogFormat, "")); ok {
		cfg.Format = f
	}
	if v, err := env.Bool(EnvLogNoColor, cfg.NoColor); err == nil {
		cfg.NoColor = v
	}
	if v, err := env.Bool(EnvLogTimestamp, cfg.Timestamp); err == nil {
		cfg.Timestamp = v
	}
	return cfg
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

func ParseFormat(raw string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatConsole:
		return FormatConsole, true
	case FormatJSON:
		return FormatJSON, true
	default:
		return "", false
	}
}

// New returns a logger writing to w tagged with app.
func New(w io.Writer, app string, cfg Config) zerolog.Logger {
	out := w
	if cfg.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: w, NoColor: cfg.NoColor, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(out).Level(cfg.Level).With().Str("app", app)
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}
