package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKVLoggerEmitsStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	kv := NewKVLogger(zap.New(core))

	kv.Info("request served", "path", "/health", "status", 200)
	kv.Error("request failed", "path", "/bills")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "request served", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/health", entries[0].ContextMap()["path"])

	assert.Equal(t, "request failed", entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestNewLoggerFallsBackToInfoOnBadLevel(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "bogus", OutputPath: "stdout", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
