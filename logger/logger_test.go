package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewModes(t *testing.T) {
	nop, err := New(ModeNop)
	require.NoError(t, err)
	assert.False(t, nop.Core().Enabled(zapcore.ErrorLevel))

	dev, err := New(ModeDevelopment)
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	prod, err := New(ModeProduction)
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, prod.Core().Enabled(zapcore.InfoLevel))
}

func TestInitReplacesGlobals(t *testing.T) {
	require.NoError(t, Init(ModeNop))
	assert.Same(t, Log(), zap.L())
	Sync()
}
