// Package logger provides logging utilities for patchwork using the bullets library.
//
// It wraps [bullets.Logger] behind a small interface with slog-style
// key-value arguments, plus convenience constructors for creating loggers
// at various levels and a silent logger for use in tests or when no output
// is desired.
//
// Usage:
//
//	log := logger.NewLogger("debug")
//	log.Debug("starting operation", "branch", name)
//
//	silentLog := logger.NoLogger() // Suppresses all output
package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/sgaunet/bullets"
)

// Logger is the interface for logging in patchwork.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// bulletsLogger adapts a bullets logger to the Logger interface, rendering
// key-value pairs into the message text.
type bulletsLogger struct {
	l *bullets.Logger
}

func (b *bulletsLogger) Debug(msg string, args ...any) { b.l.Debug(format(msg, args)) }
func (b *bulletsLogger) Info(msg string, args ...any)  { b.l.Info(format(msg, args)) }
func (b *bulletsLogger) Warn(msg string, args ...any)  { b.l.Warn(format(msg, args)) }
func (b *bulletsLogger) Error(msg string, args ...any) { b.l.Error(format(msg, args)) }

// format appends slog-style key-value pairs to the message.
func format(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}

// NewLogger creates a new logger that writes to stdout at the specified level.
//
// Parameters:
//   - logLevel: one of "debug", "info", "warn", "error" (defaults to "info" for unknown values)
func NewLogger(logLevel string) Logger {
	var level bullets.Level
	switch logLevel {
	case "debug":
		level = bullets.DebugLevel
	case "info":
		level = bullets.InfoLevel
	case "warn":
		level = bullets.WarnLevel
	case "error":
		level = bullets.ErrorLevel
	default:
		level = bullets.InfoLevel
	}
	logger := bullets.New(os.Stdout)
	logger.SetLevel(level)
	return &bulletsLogger{l: logger}
}

// NoLogger creates a logger that suppresses all output by setting the level to Fatal.
// Useful for tests and silent operation.
func NoLogger() Logger {
	logger := bullets.New(os.Stdout)
	logger.SetLevel(bullets.FatalLevel)
	return &bulletsLogger{l: logger}
}
