package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewHonoursConfiguredLevel(t *testing.T) {
	log, err := New(&Config{Level: "warn", Format: "json"})
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewConsoleEnablesDebug(t *testing.T) {
	log, err := New(&Config{Level: "debug", Format: "console"})
	require.NoError(t, err)

	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewUnknownLevelFallsBack(t *testing.T) {
	log, err := New(&Config{Level: "chatty", Format: "json"})
	require.NoError(t, err)

	// Production default: info and above.
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
