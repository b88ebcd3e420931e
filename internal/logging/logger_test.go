package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewOrNop_FallsBack(t *testing.T) {
	t.Parallel()

	logger := NewOrNop(Config{Level: "loud"})
	require.NotNil(t, logger)
	logger.Info("dropped")
}

func TestFileConfig_WritesJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "flare.log")
	logger, err := New(FileConfig("info", path))
	require.NoError(t, err)

	logger.Info("daemon starting")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"daemon starting"`), "got %s", data)
}
