// Package logger provides structured, context-aware logging built on logrus.
//
// A process-wide standard logger is initialized once via New and retrieved
// with StdLogger. All logging methods accept a context.Context so the request
// trace ID travels with every entry.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/filedepot/filedepot/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger with context-aware helpers.
type Logger struct {
	l *logrus.Logger
}

var std = &Logger{l: logrus.New()}

// New configures the standard logger from cfg and returns a cleanup function
// that flushes and closes any file output.
func New(cfg *config.Config) (func(), error) {
	cleanup := func() {}
	if cfg == nil {
		return cleanup, nil
	}

	std.l.SetLevel(toLogrusLevel(cfg.Level))

	switch cfg.Format {
	case "json":
		std.l.SetFormatter(&logrus.JSONFormatter{})
	default:
		std.l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch cfg.Output {
	case "file":
		f, err := openOutputFile(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		std.l.SetOutput(f)
		cleanup = func() { _ = f.Close() }
	case "both":
		f, err := openOutputFile(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		std.l.SetOutput(io.MultiWriter(os.Stdout, f))
		cleanup = func() { _ = f.Close() }
	default:
		std.l.SetOutput(os.Stdout)
	}

	return cleanup, nil
}

// StdLogger returns the standard logger.
func StdLogger() *Logger {
	return std
}

// SetLevel adjusts the standard logger level at runtime.
func SetLevel(level int) {
	std.l.SetLevel(toLogrusLevel(level))
}

func openOutputFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("logger output is 'file' but output_file is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// toLogrusLevel maps the numeric config level to a logrus level.
// 0 and below is debug, 1 info, 2 warn, 3 error, 4+ fatal.
func toLogrusLevel(level int) logrus.Level {
	switch {
	case level <= 0:
		return logrus.DebugLevel
	case level == 1:
		return logrus.InfoLevel
	case level == 2:
		return logrus.WarnLevel
	case level == 3:
		return logrus.ErrorLevel
	default:
		return logrus.FatalLevel
	}
}

// entry builds a logrus entry enriched with the trace ID from ctx and the
// given key-value pairs. Keys without a matching value are dropped.
func (lg *Logger) entry(ctx context.Context, kvs ...any) *logrus.Entry {
	fields := logrus.Fields{}
	if traceID := getTraceID(ctx); traceID != "" {
		fields[traceKey] = traceID
	}
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			key = fmt.Sprint(kvs[i])
		}
		fields[key] = kvs[i+1]
	}
	return lg.l.WithFields(fields)
}

// Debug logs at debug level.
func (lg *Logger) Debug(ctx context.Context, msg string, kvs ...any) {
	lg.entry(ctx, kvs...).Debug(msg)
}

// Info logs at info level.
func (lg *Logger) Info(ctx context.Context, msg string, kvs ...any) {
	lg.entry(ctx, kvs...).Info(msg)
}

// Warn logs at warn level.
func (lg *Logger) Warn(ctx context.Context, msg string, kvs ...any) {
	lg.entry(ctx, kvs...).Warn(msg)
}

// Error logs at error level.
func (lg *Logger) Error(ctx context.Context, msg string, kvs ...any) {
	lg.entry(ctx, kvs...).Error(msg)
}

// Fatal logs at fatal level and exits.
func (lg *Logger) Fatal(ctx context.Context, msg string, kvs ...any) {
	lg.entry(ctx, kvs...).Fatal(msg)
}

// AddHook attaches a logrus hook to the underlying logger.
func (lg *Logger) AddHook(hook logrus.Hook) {
	lg.l.AddHook(hook)
}
