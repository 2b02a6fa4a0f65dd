// Package logger provides the zerolog implementation of the core logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/openbat/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.Nop

// New returns a Logger for the given component writing to stdout. APP_ENV=dev
// selects the console format and LOG_LEVEL the minimum level.
func New(component string) Logger {
	return NewZerologLogger(component, os.Stdout)
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a logger writing to w. Every line carries the
// component field.
func NewZerologLogger(component string, w io.Writer) *ZerologLogger {
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).Level(ParseLevel(os.Getenv("LOG_LEVEL"))).
		With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

// ParseLevel maps a level name to a zerolog level. Unknown or empty names
// select info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// With returns a child logger with an additional field on every line.
func (l *ZerologLogger) With(key string, value any) *ZerologLogger {
	return &ZerologLogger{log: l.log.With().Interface(key, value).Logger()}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Infow(msg string, fields map[string]any) {
	l.log.Info().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
