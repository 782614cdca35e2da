// Package config loads scheduler, logging and metrics settings from an
// optional YAML file and THREADHOP_* environment variables.
package config
