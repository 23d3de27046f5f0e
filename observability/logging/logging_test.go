package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Info("call applied", "method", "buy")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "call applied", line["message"])
	require.Equal(t, "buy", line["method"])
	require.Contains(t, line, "timestamp")
	require.NotContains(t, line, "msg")
}

func TestHandlerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Debug("hidden")
	require.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetupWritesRotatedFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "listingd.log")
	logger := SetupWithOptions("listingd", "test", Options{File: path, MaxSizeMB: 1})
	logger.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	require.Equal(t, "listingd", line["service"])
	require.Equal(t, "test", line["env"])
}
