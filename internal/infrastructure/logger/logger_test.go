package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/LavaJover/shvark-affiliate-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "affiliate.log")
	log, closer, err := New(config.LogConfig{LogLevel: "WARN", LogFormat: "json", LogOutput: path})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept", "payout_id", "p-1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"payout_id":"p-1"`)
	assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, _, err := New(config.LogConfig{LogLevel: "loud"})
	assert.Error(t, err)

	_, _, err = New(config.LogConfig{LogLevel: "info", LogFormat: "xml"})
	assert.Error(t, err)

	log, closer, err := New(config.LogConfig{LogLevel: "debug", LogFormat: "text"})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}
