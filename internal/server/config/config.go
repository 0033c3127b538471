// Package config defines the server configuration: the static snapshot
// loaded at startup and the dynamic field registry behind CONFIG GET/SET.
package config

import (
	"runtime"
)

// Default configuration values.
const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 6379
	DefaultDataPath = "./nimbis_data"
	DefaultLogLevel = "info"
)

// ServerConfig is the root configuration for nimbis-server. A snapshot is
// immutable once published; mutation goes through Dynamic, which installs
// a fresh copy.
type ServerConfig struct {
	// Host is the TCP bind address. Immutable at runtime.
	Host string `koanf:"host"`

	// Port is the TCP port. Immutable at runtime.
	Port int `koanf:"port"`

	// DataPath is the root directory for shard storage. Immutable at
	// runtime.
	DataPath string `koanf:"data_path"`

	// Save is accepted for redis.conf compatibility; persistence is
	// always on through the storage engines.
	Save string `koanf:"save"`

	// AppendOnly is accepted for redis.conf compatibility ("yes"/"no").
	AppendOnly string `koanf:"appendonly"`

	// LogLevel is the logging level (debug, info, warn, error).
	// Mutable; changes re-bind the logger level.
	LogLevel string `koanf:"log_level"`

	// WorkerThreads is the number of worker shards. Immutable at
	// runtime; zero means one per CPU.
	WorkerThreads int `koanf:"worker_threads"`

	// MetricsAddr optionally exposes prometheus metrics over HTTP.
	// Empty disables the endpoint. Immutable at runtime.
	MetricsAddr string `koanf:"metrics_addr"`

	// RateLimit is the maximum commands per second per connection;
	// zero disables limiting.
	RateLimit int `koanf:"rate_limit"`
}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Host:          DefaultHost,
		Port:          DefaultPort,
		DataPath:      DefaultDataPath,
		Save:          "",
		AppendOnly:    "no",
		LogLevel:      DefaultLogLevel,
		WorkerThreads: runtime.NumCPU(),
	}
}

// Workers resolves the effective worker count.
func (c *ServerConfig) Workers() int {
	if c.WorkerThreads > 0 {
		return c.WorkerThreads
	}
	return runtime.NumCPU()
}

func (c *ServerConfig) clone() *ServerConfig {
	cp := *c
	return &cp
}
