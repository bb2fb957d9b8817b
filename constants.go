package gopherd

import "github.com/gophernest/sgopherd/internal/constants"

// Re-exported so callers outside this module only need to import the root
// package, matching the teacher's constants.go re-export pattern.
const (
	MaxRequestSize  = constants.MaxRequestSize
	MaxEnvValueSize = constants.MaxEnvValueSize
	ListenerBacklog = constants.ListenerBacklog

	ServerFixedFDs = constants.ServerFixedFDs
	PerClientFDs   = constants.PerClientFDs

	DefaultDirectory   = constants.DefaultDirectory
	DefaultHostname    = constants.DefaultHostname
	DefaultIndexFile   = constants.DefaultIndexFile
	DefaultMaxClients  = constants.DefaultMaxClients
	DefaultPort        = constants.DefaultPort
	DefaultTimeout     = constants.DefaultTimeout
	DefaultWorkerCount = constants.DefaultWorkerCount
)
