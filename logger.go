package submarines

import (
	"log/slog"

	"github.com/bytedance/gopkg/util/gopool"
)

// Logger is the interface for structured logging.
// It is designed to be compatible with *slog.Logger from the standard library.
// Applications can provide their own implementation or use the default slog logger.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

// asyncLogger hands every record to a pooled goroutine so that a slow sink
// never holds up the protocol. Records may be emitted out of order.
type asyncLogger struct {
	next Logger
}

// NewAsyncLogger wraps next so that logging calls return immediately.
func NewAsyncLogger(next Logger) Logger {
	return &asyncLogger{next: next}
}

func (l *asyncLogger) Debug(msg string, args ...any) {
	gopool.Go(func() { l.next.Debug(msg, args...) })
}

func (l *asyncLogger) Info(msg string, args ...any) {
	gopool.Go(func() { l.next.Info(msg, args...) })
}

func (l *asyncLogger) Warn(msg string, args ...any) {
	gopool.Go(func() { l.next.Warn(msg, args...) })
}

func (l *asyncLogger) Error(msg string, args ...any) {
	gopool.Go(func() { l.next.Error(msg, args...) })
}
