package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/bugfiler/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: " error ", want: slog.LevelError},
		{in: "trace", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_TextToFallback(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "key", "PROJ-7")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "key=PROJ-7")
}

func TestNew_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bugfiler.log")
	var fallback bytes.Buffer

	logger, closer, err := New(config.LogConfig{Level: "debug", Format: "json", File: path}, &fallback)
	require.NoError(t, err)
	logger.Debug("issue created", "key", "PROJ-7")
	require.NoError(t, closer.Close())

	assert.Empty(t, fallback.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "issue created", rec["msg"])
	assert.Equal(t, "PROJ-7", rec["key"])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
