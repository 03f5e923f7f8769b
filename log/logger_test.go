package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("", "debug")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	// Unknown levels fall back to info.
	logger = NewLogger("", "chatty")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.log")
	logger := NewLogger(path, "info")
	logger.WithFields(Fields{"node": 3}).Info("Mined a new block")
	logger.Debug("hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Mined a new block")
	assert.Contains(t, string(data), "node=3")
	assert.NotContains(t, string(data), "hidden")
}

func TestSetGlobalLogger(t *testing.T) {
	old := Global
	t.Cleanup(func() { Global = old })

	SetGlobalLogger("", "warn")
	assert.Equal(t, logrus.WarnLevel, Global.GetLevel())
}
