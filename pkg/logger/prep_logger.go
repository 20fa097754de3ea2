// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config for logger
type Config struct {
	Level   string
	Output  io.Writer
	Service string
	Console bool // human readable output for local development
}

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// ParseLevel parses a string level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a new logger instance
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if cfg.Service == "" {
		cfg.Service = "prep"
	}
	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Str("service", cfg.Service).Logger()
}

// Init initializes the default logger
func Init(cfg Config) {
	once.Do(func() {
		defaultLogger = New(cfg)
	})
}

// Default returns the default logger
func Default() *zerolog.Logger {
	once.Do(func() {
		defaultLogger = New(Config{Level: "info"})
	})
	return &defaultLogger
}

// Component returns a sub-logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Default().With().Str("component", name).Logger()
}

// Package-level functions using default logger
func Debug(msg string, args ...any) { Default().Debug().Msgf(msg, args...) }
func Info(msg string, args ...any)  { Default().Info().Msgf(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn().Msgf(msg, args...) }
func Error(msg string, args ...any) { Default().Error().Msgf(msg, args...) }
func Fatal(msg string, args ...any) { Default().Fatal().Msgf(msg, args...) }
