package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "memberrequest")
	assert.Error(t, err)
}

func TestNewReplacesGlobals(t *testing.T) {
	log, err := New("debug", "memberrequest")
	require.NoError(t, err)
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	assert.Same(t, log, zap.L())
	assert.True(t, log.Core().Enabled(zap.DebugLevel))
}
