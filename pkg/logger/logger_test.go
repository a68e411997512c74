package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wurt83ow/netalerte-client/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"chatty":  zerolog.InfoLevel,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	l.Info().Msg("dropped")
	l.Warn().Str("component", "autosync").Msg("sync skipped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "autosync", entry["component"])
	assert.Equal(t, "sync skipped", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.LoggingConfig{Level: "info", Format: "console"}, &buf)

	l.Info().Msg("sync finished")
	assert.Contains(t, buf.String(), "sync finished")
	assert.Contains(t, buf.String(), "INF")
}

func TestNew_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("{\"message\":\"earlier\"}\n"), 0o644))

	l, closer, err := New(config.LoggingConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)
	l.Info().Msg("Test message")
	require.NoError(t, closer.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "earlier")
	assert.Contains(t, lines[1], "Test message")
}

func TestNew_BadPath(t *testing.T) {
	_, _, err := New(config.LoggingConfig{File: filepath.Join(t.TempDir(), "missing", "log.txt")})
	assert.Error(t, err)
}
