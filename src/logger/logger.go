package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Logger defines the interface for logging throughout the application.
// Arguments after msg are slog-style key/value pairs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ConsoleLogger writes human-readable, colourised logs to stderr.
// Used for normal operation and debugging.
type ConsoleLogger struct {
	log *slog.Logger
}

// NewConsoleLogger creates a console logger on stderr.
func NewConsoleLogger(debug bool) *ConsoleLogger {
	return NewConsoleLoggerTo(os.Stderr, debug)
}

// NewConsoleLoggerTo creates a console logger writing to w.
func NewConsoleLoggerTo(w io.Writer, debug bool) *ConsoleLogger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal(w),
	})

	return &ConsoleLogger{log: slog.New(handler)}
}

func (c *ConsoleLogger) Info(msg string, args ...any) {
	c.log.Info(msg, args...)
}

func (c *ConsoleLogger) Error(msg string, args ...any) {
	c.log.Error(msg, args...)
}

func (c *ConsoleLogger) Debug(msg string, args ...any) {
	c.log.Debug(msg, args...)
}

// SilentLogger discards all log messages.
// Used when stdout/stderr belong to a TUI or a protocol stream.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...any)  {}
func (s *SilentLogger) Error(msg string, args ...any) {}
func (s *SilentLogger) Debug(msg string, args ...any) {}

// Ensure returns l, or a SilentLogger when l is nil.
func Ensure(l Logger) Logger {
	if l == nil {
		return NewSilentLogger()
	}
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
