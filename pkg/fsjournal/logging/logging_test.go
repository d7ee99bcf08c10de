package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests share the package-level logging state and must not run in parallel.

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"loud", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, logging.ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "debug", logging.LevelDebug.String())
	assert.Equal(t, "warn", logging.LevelWarn.String())
	assert.Equal(t, "unknown", logging.Level(42).String())
}

func TestInit(t *testing.T) {
	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg:  logging.Config{Level: "info"},
		},
		{
			name: "component overrides",
			cfg: logging.Config{
				Level:      "info",
				Components: map[string]string{"journal": "debug"},
			},
		},
		{
			name:    "invalid level",
			cfg:     logging.Config{Level: "invalid"},
			wantErr: true,
		},
		{
			name:    "invalid component level",
			cfg:     logging.Config{Level: "info", Components: map[string]string{"x": "nope"}},
			wantErr: true,
		},
		{
			name:    "invalid console level",
			cfg:     logging.Config{Level: "info", ConsoleLevel: "shout"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Path = filepath.Join(t.TempDir(), "fsjournal.log")
			err := logging.Init(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, logging.Close())
		})
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fsjournal.log")
	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: path}))

	logger := logging.Get("lifecycle")
	logger.Info("directory created", "path", "testdir")
	logger.Debug("hidden at info level")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "directory created")
	assert.Contains(t, content, "testdir")
	assert.Contains(t, content, "lifecycle")
	assert.NotContains(t, content, "hidden at info level")
}

func TestLoggerComponentLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsjournal.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:      "warn",
		Path:       path,
		Components: map[string]string{"journal": "debug"},
	}))

	logging.Get("journal").Debug("journal detail")
	logging.Get("session").Info("session detail")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "journal detail")
	assert.NotContains(t, string(data), "session detail")
}

func TestLoggerConsole(t *testing.T) {
	var console bytes.Buffer
	require.NoError(t, logging.Init(logging.Config{
		Level:        "debug",
		Path:         filepath.Join(t.TempDir(), "fsjournal.log"),
		ConsoleLevel: "warn",
		Console:      &console,
	}))

	logger := logging.Get("audit")
	logger.Info("quiet on console")
	logger.Warn("audit write failed", "error", "disk full")
	require.NoError(t, logging.Close())

	out := console.String()
	assert.Contains(t, out, "audit write failed")
	assert.NotContains(t, out, "quiet on console")
}

func TestLoggerBeforeInitIsSilent(t *testing.T) {
	require.NoError(t, logging.Close())

	logger := logging.Get("early")
	assert.NotPanics(t, func() {
		logger.Error("goes nowhere")
	})
	assert.Equal(t, "early", logger.Component())
}

func TestLoggerObtainedBeforeInitIsUpdated(t *testing.T) {
	require.NoError(t, logging.Close())
	logger := logging.Get("report")

	path := filepath.Join(t.TempDir(), "fsjournal.log")
	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: path}))
	logger.Info("written after init")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written after init"))
}

func TestLoggerWith(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsjournal.log")
	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: path}))

	logging.Get("session").With("run", "abc123").Info("run started")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "abc123")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		logging.Discard().With("k", "v").Warn("nothing")
	})
}
