package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelWarn},
		{"", slog.LevelWarn},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "level %q", tt.input)
	}
}

func TestInit_JSONHandler(t *testing.T) {
	var buf bytes.Buffer
	log := Init(Options{Level: "info", Format: "json", Output: &buf})

	log.Info("hello", "component", "test")

	out := buf.String()
	assert.True(t, strings.Contains(out, `"msg":"hello"`), "expected JSON output, got %s", out)
	assert.Contains(t, out, `"component":"test"`)
}

func TestInit_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := Init(Options{Level: "error", Output: &buf})

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}
