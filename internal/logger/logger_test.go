package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"dlcoracle/internal/config"
)

func TestNewHonorsLevel(t *testing.T) {
	log, err := New(config.LogConfig{Level: "WARN", Encoding: "json"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New(config.LogConfig{Level: "loud", Encoding: "xml"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNamedWithoutParent(t *testing.T) {
	log := Named(nil, "store")
	require.NotNil(t, log)
	log.Info("dropped")
}
