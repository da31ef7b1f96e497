// Package logger provides structured logging for cvparse.
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	mu            sync.RWMutex
)

func init() {
	defaultLogger = newLogger(os.Stderr, false, zerolog.InfoLevel)
}

// Options configures the logger.
type Options struct {
	Debug  bool            // Enable debug level logging
	Quiet  bool            // Only show errors
	JSON   bool            // Output as JSON lines
	Output io.Writer       // Output destination (default: stderr)
	Logger *zerolog.Logger // Custom logger (overrides all other options)
}

// Init initializes the logger with the specified options.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	if opts.Logger != nil {
		defaultLogger = *opts.Logger
		return
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	if opts.Quiet {
		level = zerolog.ErrorLevel
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	defaultLogger = newLogger(output, opts.JSON, level)
}

func newLogger(w io.Writer, json bool, level zerolog.Level) zerolog.Logger {
	if !json {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// SetLogger replaces the package logger, e.g. to share one with an embedding application.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// Get returns the current package logger.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Debug logs a debug message with alternating key/value pairs.
func Debug(msg string, args ...any) {
	l := Get()
	emit(l.Debug(), msg, args)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	l := Get()
	emit(l.Info(), msg, args)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	l := Get()
	emit(l.Warn(), msg, args)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	l := Get()
	emit(l.Error(), msg, args)
}

// With returns a logger with the given key/value pairs attached.
func With(args ...any) zerolog.Logger {
	l := Get()
	if len(args) == 0 {
		return l
	}
	return l.With().Fields(args).Logger()
}

// WithContext attaches the package logger, extended with args, to ctx.
func WithContext(ctx context.Context, args ...any) context.Context {
	l := With(args...)
	return l.WithContext(ctx)
}

// DebugContext logs a debug message using the logger attached to ctx, if any.
func DebugContext(ctx context.Context, msg string, args ...any) {
	l := fromContext(ctx)
	emit(l.Debug(), msg, args)
}

// InfoContext logs an info message using the logger attached to ctx, if any.
func InfoContext(ctx context.Context, msg string, args ...any) {
	l := fromContext(ctx)
	emit(l.Info(), msg, args)
}

// WarnContext logs a warning using the logger attached to ctx, if any.
func WarnContext(ctx context.Context, msg string, args ...any) {
	l := fromContext(ctx)
	emit(l.Warn(), msg, args)
}

// ErrorContext logs an error message using the logger attached to ctx, if any.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	l := fromContext(ctx)
	emit(l.Error(), msg, args)
}

func fromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	l := Get()
	return &l
}

func emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	if len(args) > 0 {
		e = e.Fields(args)
	}
	e.Msg(msg)
}
