package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesTeacherStyleKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("elegent-cli", "test", Options{Output: &buf})
	logger.Info("connected", "account", "0xabc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "connected", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "elegent-cli", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestSetupRespectsLevelAndFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "elegent.log")
	logger := SetupWithOptions("dashboardd", "", Options{Output: &buf, File: file, Level: slog.LevelWarn})
	logger.Info("hidden")
	require.Zero(t, buf.Len())
	logger.Warn("shown")
	require.Contains(t, buf.String(), "shown")
	require.FileExists(t, file)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "0xabc", MaskField("account", "0xabc").Value.String())
	require.Equal(t, RedactedValue, MaskField("passphrase", "hunter2").Value.String())
	require.Equal(t, "", MaskField("passphrase", "").Value.String())
	require.True(t, IsPublic(" TX_HASH "))
}
