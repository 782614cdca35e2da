package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Scheduler.IdleTimeout)
	assert.Equal(t, 100, cfg.Scheduler.HistoryCapacity)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "threadhop", cfg.Metrics.Namespace)
	assert.Empty(t, cfg.Metrics.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Metrics.PollInterval)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	path := filepath.Join(dir, "threadhop.yaml")
	content := []byte(`
scheduler:
  idle_timeout: 250ms
  history_capacity: 10
log:
  level: debug
metrics:
  listen_addr: "localhost:9100"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("THREADHOP_LOG_LEVEL", "warn")
	t.Setenv("THREADHOP_SCHEDULER_HISTORY_CAPACITY", "42")

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.IdleTimeout)
	assert.Equal(t, 42, cfg.Scheduler.HistoryCapacity, "environment should override the file")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "localhost:9100", cfg.Metrics.ListenAddr)

	rc := cfg.RegistryConfig(nil, nil)
	assert.Equal(t, 250*time.Millisecond, rc.IdleTimeout)
	assert.Equal(t, 42, rc.HistoryCapacity)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
		field string
	}{
		{"unknown log level", "THREADHOP_LOG_LEVEL", "verbose", "Level"},
		{"zero history", "THREADHOP_SCHEDULER_HISTORY_CAPACITY", "0", "HistoryCapacity"},
		{"bad listen address", "THREADHOP_METRICS_LISTEN_ADDR", "not an address", "ListenAddr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			_, err := Load("")

			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
