// Package constants holds the default values and fixed budgets shared by the
// supervisor, the worker, and the CLI entrypoints.
package constants

import "time"

// Protocol limits.
const (
	// MaxRequestSize is the largest selector+query+CRLF a client may send.
	MaxRequestSize = 512

	// MaxEnvValueSize bounds each CGI environment value (SCRIPT_NAME,
	// QUERY_STRING, SERVER_NAME, SERVER_PORT, REMOTE_ADDR), mirroring the
	// original implementation's fixed-size environment buffers.
	MaxEnvValueSize = 1024

	// ListenerBacklog is the backlog passed to listen(2).
	ListenerBacklog = 256

	// ListBufferSize sizes cmd/gopherlist's output buffer.
	ListBufferSize = 8192

	// ListFlushTimeoutMs bounds how long cmd/gopherlist's output buffer
	// polls a blocked stdout before giving up.
	ListFlushTimeoutMs = 5000
)

// File descriptor budget. A worker's soft RLIMIT_NOFILE must cover
// ServerFixedFDs plus MaxClients*PerClientFDs.
const (
	// ServerFixedFDs covers stdio, the listener, the signalfd, the
	// timerfd, the content-root descriptor, and headroom for one
	// in-flight accept plus one CGI dup.
	ServerFixedFDs = 10

	// PerClientFDs covers a client's socket, response file, directory
	// descriptor, and process descriptor.
	PerClientFDs = 4
)

// CLI defaults for the worker/supervisor binary (cmd/gopherd).
const (
	DefaultDirectory   = "./gopherroot"
	DefaultHostname    = "localhost"
	DefaultIndexFile   = ".gophermap"
	DefaultMaxClients  = 1000
	DefaultPort        = 70
	DefaultTimeout     = 10 * time.Second
	DefaultWorkerCount = 1
)

// CLI defaults for the benchmark client (cmd/gopherbench).
const (
	DefaultBenchAddress  = "127.0.0.1"
	DefaultBenchDuration = 60 * time.Second
	DefaultBenchPort     = 8080
	DefaultBenchRequest  = "/"
	DefaultBenchSize     = 0
	DefaultBenchTimeout  = time.Second
	DefaultBenchWorkers  = 1
)

// Environment variables used for the supervisor-to-worker re-exec handoff.
// Not part of the documented CLI surface.
const (
	EnvRole        = "GOPHERD_ROLE"
	RoleWorker     = "worker"
	EnvDirectory   = "GOPHERD_DIRECTORY"
	EnvHostname    = "GOPHERD_HOSTNAME"
	EnvIndexFile   = "GOPHERD_INDEXFILE"
	EnvMaxClients  = "GOPHERD_MAXCLIENTS"
	EnvPort        = "GOPHERD_PORT"
	EnvTimeout     = "GOPHERD_TIMEOUT"
	EnvWorkerIndex = "GOPHERD_WORKER_INDEX"
)

// CGI environment variable names.
const (
	EnvScriptName  = "SCRIPT_NAME"
	EnvQueryString = "QUERY_STRING"
	EnvServerName  = "SERVER_NAME"
	EnvServerPort  = "SERVER_PORT"
	EnvRemoteAddr  = "REMOTE_ADDR"
)
