package obslog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_DefaultsToInfoOnUnrecognizedLevel(t *testing.T) {
	logger, err := New(Config{Level: "not-a-level", JSON: true})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_BuildsJSONAndConsoleLoggers(t *testing.T) {
	jsonLogger, err := New(Config{Level: "debug", JSON: true})
	require.NoError(t, err)
	assert.NotNil(t, jsonLogger)

	consoleLogger, err := New(Config{Level: "warn", JSON: false})
	require.NoError(t, err)
	assert.NotNil(t, consoleLogger)
}

func TestNop_NeverPanicsOnLogCalls(t *testing.T) {
	logger := Nop()
	assert.NotPanics(t, func() {
		logger.Info("anything")
		logger.Error("anything else")
	})
}
