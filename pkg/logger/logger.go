// Package logger provides structured logging utilities.
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel parses a string into a zap level. Unknown values map to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is a structured JSON logger taking alternating key/value pairs.
type Logger struct {
	zl *zap.Logger
}

// New creates a Logger writing JSON lines to output at the given level.
func New(output io.Writer, level string) *Logger {
	if output == nil {
		output = os.Stdout
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(output)),
		zap.NewAtomicLevelAt(ParseLevel(level)),
	)

	return &Logger{zl: zap.New(core)}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// With returns a new Logger with additional fields.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{zl: l.zl.With(fields(keyvals)...)}
}

// Debug logs a message at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.zl.Debug(msg, fields(keyvals)...)
}

// Info logs a message at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.zl.Info(msg, fields(keyvals)...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.zl.Warn(msg, fields(keyvals)...)
}

// Error logs a message at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.zl.Error(msg, fields(keyvals)...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// fields turns key/value pairs into zap fields, dropping pairs whose key
// is not a string and a trailing key without a value.
func fields(keyvals []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals)-1; i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		switch v := keyvals[i+1].(type) {
		case error:
			out = append(out, zap.String(key, v.Error()))
		default:
			out = append(out, zap.Any(key, v))
		}
	}
	return out
}
