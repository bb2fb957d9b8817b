package gopherd

import (
	"fmt"
	"time"
)

// Config is the immutable, per-worker configuration built by cmd/gopherd's
// CLI parsing and handed down to internal/worker and internal/supervisor.
type Config struct {
	Directory   string        // content root
	Hostname    string        // externally visible hostname, used in menu lines
	IndexFile   string        // filename served for a directory selector
	MaxClients  int           // per-worker concurrent client ceiling
	Port        int           // listening port
	Timeout     time.Duration // idle-client timeout
	WorkerCount int           // number of worker processes the supervisor spawns
}

// DefaultConfig returns the documented CLI defaults (spec §6).
func DefaultConfig() *Config {
	return &Config{
		Directory:   DefaultDirectory,
		Hostname:    DefaultHostname,
		IndexFile:   DefaultIndexFile,
		MaxClients:  DefaultMaxClients,
		Port:        DefaultPort,
		Timeout:     DefaultTimeout,
		WorkerCount: DefaultWorkerCount,
	}
}

// Validate checks the configuration for internally inconsistent values
// before a worker or supervisor starts up.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return NewError("Config.Validate", ErrCodeSetup, "directory must not be empty")
	}
	if c.Hostname == "" {
		return NewError("Config.Validate", ErrCodeSetup, "hostname must not be empty")
	}
	if c.IndexFile == "" {
		return NewError("Config.Validate", ErrCodeSetup, "indexfile must not be empty")
	}
	if c.MaxClients <= 0 {
		return NewError("Config.Validate", ErrCodeSetup, fmt.Sprintf("maxclients must be positive, got %d", c.MaxClients))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return NewError("Config.Validate", ErrCodeSetup, fmt.Sprintf("port out of range: %d", c.Port))
	}
	if c.Timeout <= 0 {
		return NewError("Config.Validate", ErrCodeSetup, fmt.Sprintf("timeout must be positive, got %s", c.Timeout))
	}
	if c.WorkerCount <= 0 {
		return NewError("Config.Validate", ErrCodeSetup, fmt.Sprintf("workers must be positive, got %d", c.WorkerCount))
	}
	return nil
}

// FDBudget returns the soft RLIMIT_NOFILE a worker needs to serve up to
// MaxClients concurrent sessions (spec §4.4.1).
func (c *Config) FDBudget() uint64 {
	return uint64(ServerFixedFDs) + uint64(c.MaxClients)*uint64(PerClientFDs)
}
