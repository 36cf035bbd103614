package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_ProductionWritesJSONFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", LogFileName)

	logger, err := NewLogger(LogOptions{FilePath: logPath})
	require.NoError(t, err)

	logger.Info("coordinator started")
	NewLogReporter(logger).Capture(errors.New("kaboom"), "dispatch")
	NewLogReporter(logger).Capture(nil, "ignored")
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"coordinator started"`)
	assert.Contains(t, string(data), `"time":`)
	assert.Contains(t, string(data), `"where":"dispatch"`)
	assert.Contains(t, string(data), "kaboom")
	assert.NotContains(t, string(data), "ignored")
}

func TestNewLogger_Development(t *testing.T) {
	logger, err := NewLogger(LogOptions{Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "development logs at debug")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(LogOptions{Level: "chatty"})
	assert.Error(t, err)
}
