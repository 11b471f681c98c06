package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"ERROR", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
	assert.NotNil(t, NewOrNop(Config{Level: "loud"}))
}

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sysvipc.log")
	cfg := DefaultConfig()
	cfg.Level = "info"
	cfg.OutputPaths = []string{path}

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("queue created")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"queue created"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestDevelopmentConfig(t *testing.T) {
	cfg := DevelopmentConfig()
	assert.True(t, cfg.Development)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "console", encodingFormat(cfg.Development))
	assert.Equal(t, "json", encodingFormat(false))
}
