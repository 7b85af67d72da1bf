package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "json", Level: "WARN", Writer: &buf})

	logger.Info("dropped")
	logger.Warn("kept", "item_id", "orders")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "orders", record["item_id"])
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "text", Level: "ERROR", Debug: true, Writer: &buf})

	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_Tint(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{NoColor: true, Writer: &buf})

	logger.Info("run started", "run_id", "abc")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "run started")
	assert.Contains(t, out, "run_id=abc")
	assert.NotContains(t, out, "hidden")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")

	opts := FromEnv()
	assert.Equal(t, "DEBUG", opts.Level)
	assert.Equal(t, "json", opts.Format)
}
