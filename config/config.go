package config

import (
	"io"
	"time"

	"github.com/Swind/go-threadhop/core"
)

// Config holds all settings of a threadhop process.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// SchedulerConfig contains the registry settings.
type SchedulerConfig struct {
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	HistoryCapacity int           `mapstructure:"history_capacity" validate:"gte=1,lte=100000"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// MetricsConfig contains Prometheus settings. An empty ListenAddr disables
// the metrics endpoint.
type MetricsConfig struct {
	Namespace    string        `mapstructure:"namespace" validate:"required"`
	ListenAddr   string        `mapstructure:"listen_addr" validate:"omitempty,hostname_port"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

// NewLogger returns a zerolog-backed logger at the configured level.
func (c *Config) NewLogger(w io.Writer) core.Logger {
	return core.NewWriterLogger(w, c.Log.Level)
}

// RegistryConfig maps the scheduler settings onto a core.RegistryConfig.
func (c *Config) RegistryConfig(logger core.Logger, metrics core.Metrics) *core.RegistryConfig {
	return &core.RegistryConfig{
		IdleTimeout:     c.Scheduler.IdleTimeout,
		HistoryCapacity: c.Scheduler.HistoryCapacity,
		Logger:          logger,
		Metrics:         metrics,
	}
}
