package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Info("test message", "key", "value")

	entry := decode(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])

	ts, ok := entry["time"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		logFn func(*Logger)
		want  string
	}{
		{"debug", func(l *Logger) { l.Debug("m") }, "DEBUG"},
		{"info", func(l *Logger) { l.Info("m") }, "INFO"},
		{"warn", func(l *Logger) { l.Warn("m") }, "WARN"},
		{"error", func(l *Logger) { l.Error("m") }, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFn(New(&buf, "debug"))
			assert.Equal(t, tt.want, decode(t, &buf)["level"])
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logFunc   func(*Logger)
		shouldLog bool
	}{
		{"debug logs at debug level", "debug", func(l *Logger) { l.Debug("msg") }, true},
		{"debug skipped at info level", "info", func(l *Logger) { l.Debug("msg") }, false},
		{"warn logs at info level", "info", func(l *Logger) { l.Warn("msg") }, true},
		{"info skipped at warn level", "warn", func(l *Logger) { l.Info("msg") }, false},
		{"error logs at error level", "error", func(l *Logger) { l.Error("msg") }, true},
		{"warn skipped at error level", "error", func(l *Logger) { l.Warn("msg") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(New(&buf, tt.level))

			if tt.shouldLog {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	child := log.With("service", "linkguard").With("request_id", "abc123")
	child.Info("request handled")

	entry := decode(t, &buf)
	assert.Equal(t, "linkguard", entry["service"])
	assert.Equal(t, "abc123", entry["request_id"])
}

func TestLogger_NonStringKeysSkipped(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.With(123, "value").Info("message", 42, "skipme", "good", "value", "dangling")

	entry := decode(t, &buf)
	assert.Equal(t, "value", entry["good"])
	_, hasIntKey := entry["123"]
	assert.False(t, hasIntKey)
	_, hasDangling := entry["dangling"]
	assert.False(t, hasDangling)
}

func TestLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Error("store failed", "error", errors.New("connection refused"))

	assert.Equal(t, "connection refused", decode(t, &buf)["error"])
}

func TestLogger_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Info("one", "nested", map[string]string{"foo": "bar"})
	log.Info("two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), "line %q is not JSON", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"invalid", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.With("k", "v").Error("discarded")
	})
}
