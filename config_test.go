package gopherd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
	}{
		{"empty directory", func(c *Config) { c.Directory = "" }},
		{"empty hostname", func(c *Config) { c.Hostname = "" }},
		{"empty indexfile", func(c *Config) { c.IndexFile = "" }},
		{"zero maxclients", func(c *Config) { c.MaxClients = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"zero workers", func(c *Config) { c.WorkerCount = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestFDBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 100
	require.EqualValues(t, ServerFixedFDs+100*PerClientFDs, cfg.FDBudget())
}
