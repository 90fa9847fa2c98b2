package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "toolgate.log")

	lg, err := New(Config{
		Level: "info",
		File:  logFile,
	})
	require.NoError(t, err)

	zl := lg.GetZerolog()
	zl.Info().Str("tool", "weather").Msg("gate decision")
	require.NoError(t, lg.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gate decision")
	assert.Contains(t, string(data), "weather")
}

func TestLoggerRedactsFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "toolgate.log")

	lg, err := New(Config{
		Level:     "info",
		File:      logFile,
		Redaction: true,
	})
	require.NoError(t, err)

	zl := lg.GetZerolog()
	zl.Info().Str("args", "password: swordfish").Msg("tool call")
	require.NoError(t, lg.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[REDACTED]")
	assert.NotContains(t, string(data), "swordfish")
}

func TestLoggerInvalidLevelFallsBackToInfo(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "toolgate.log")

	lg, err := New(Config{Level: "shout", File: logFile})
	require.NoError(t, err)
	defer lg.Close()

	zl := lg.GetZerolog()
	zl.Debug().Msg("should be suppressed")
	zl.Info().Msg("should appear")
	require.NoError(t, lg.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed")
	assert.Contains(t, string(data), "should appear")
}

func TestDefaultLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
}
