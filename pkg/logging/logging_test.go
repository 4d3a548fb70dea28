package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"DEBUG", LevelDebug},
		{"WARNING", LevelWarn},
		{"Error", LevelError},
		{"dEbUg", LevelDebug},
		{" warn ", LevelWarn},
		{"", LevelInfo},
		{"trace", LevelInfo},
		{"fatal", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"Json", FormatJSON},
		{"text", FormatText},
		{"", FormatText},
		{"yaml", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseFormat(tt.input))
		})
	}
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	log.Info("dropped")
	log.Warn("kept", "pattern", "/orders/{id}")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "/orders/{id}", rec["pattern"])
}

func TestNew_Tee(t *testing.T) {
	var main, tee bytes.Buffer
	log := New(Config{
		Level:  LevelInfo,
		Output: &main,
		Tee:    []slog.Handler{slog.NewJSONHandler(&tee, &slog.HandlerOptions{Level: LevelDebug})},
	})

	log.Debug("debug only in tee")
	Component(log, "engine").Info("both")

	assert.NotContains(t, main.String(), "debug only in tee")
	assert.Contains(t, main.String(), "component=engine")
	assert.Contains(t, tee.String(), "debug only in tee")
	assert.Contains(t, tee.String(), `"component":"engine"`)
}

func TestNopAndComponent(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("nothing")
		Component(nil, "x").Info("nothing")
	})
}
