// Package logging builds the zerolog loggers used by the CLI, the pipeline
// and the MCP server. Output always goes to stderr by default because stdout
// carries command output and the MCP protocol.
//
//	log := logging.New(&logging.Config{Level: "debug"})
//	log.Info().Str("run", dir).Int("particles", n).Msg("Loaded EDAX export")
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration options
type Config struct {
	// Level is the minimum log level to output (trace, debug, info, warn, error)
	Level string

	// Format is the output format: json, console, or auto (console on a terminal)
	Format string

	// Output is stderr, stdout, discard, or a file path
	Output string

	// NoColor disables color output in console mode
	NoColor bool

	// AddCaller includes file:line in log output
	AddCaller bool
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Format:  "auto",
		Output:  "stderr",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// FromEnv returns DefaultConfig overridden by LOG_LEVEL, LOG_FORMAT and LOG_OUTPUT.
func FromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = v
	} else if os.Getenv("DEBUG") != "" {
		cfg.Level = "debug"
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		cfg.Output = v
	}
	cfg.AddCaller = os.Getenv("LOG_CALLER") == "true"
	return cfg
}

// New creates a logger from configuration. A nil config uses DefaultConfig.
func New(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := ParseLevel(cfg.Level)
	logger := zerolog.New(writer(cfg)).
		Level(level).
		With().
		Timestamp().
		Logger()

	if cfg.AddCaller || level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// Nop returns a logger that discards everything. Tests use it.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

func writer(cfg *Config) io.Writer {
	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	case "discard", "none":
		return io.Discard
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			out = os.Stderr
		} else {
			out = f
		}
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return out
	case "console", "pretty":
		return console(out, cfg.NoColor)
	default:
		if f, ok := out.(*os.File); ok && isTerminal(f) {
			return console(out, cfg.NoColor)
		}
		return out
	}
}

func console(out io.Writer, noColor bool) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
