// Command gopherd serves a directory tree over the Gopher protocol
// (RFC 1436). It runs as a supervisor that spawns one or more
// single-threaded, epoll-driven worker processes; with -workers=1 it skips
// the fork and serves directly in the foreground process.
package main

import (
	"flag"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/gophernest/sgopherd"
	"github.com/gophernest/sgopherd/internal/constants"
	"github.com/gophernest/sgopherd/internal/logging"
	"github.com/gophernest/sgopherd/internal/supervisor"
	"github.com/gophernest/sgopherd/internal/worker"
)

func main() {
	if os.Getenv(constants.EnvRole) == constants.RoleWorker {
		runWorkerFromEnv()
		return
	}

	var (
		directory   = flag.String("directory", constants.DefaultDirectory, "location to serve files from")
		hostname    = flag.String("hostname", constants.DefaultHostname, "hostname advertised in menu entries")
		indexFile   = flag.String("indexfile", constants.DefaultIndexFile, "filename served for a directory selector")
		maxClients  = flag.Int("maxclients", constants.DefaultMaxClients, "maximum concurrent clients per worker")
		port        = flag.Int("port", constants.DefaultPort, "listening port")
		timeout     = flag.Duration("timeout", constants.DefaultTimeout, "idle client timeout")
		workerCount = flag.Int("workers", constants.DefaultWorkerCount, "number of worker processes (1 disables forking)")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := &gopherd.Config{
		Directory:   *directory,
		Hostname:    *hostname,
		IndexFile:   *indexFile,
		MaxClients:  *maxClients,
		Port:        *port,
		Timeout:     *timeout,
		WorkerCount: *workerCount,
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger.Info("starting gopherd", "directory", cfg.Directory, "port", cfg.Port, "workers", cfg.WorkerCount)

	var err error
	if cfg.WorkerCount == 1 {
		runtime.LockOSThread()
		metrics := gopherd.NewMetrics()
		observer := worker.MetricsAdapter{Observer: gopherd.NewMetricsObserver(metrics)}
		err = worker.New(cfg, logger, observer).Run()
		logSnapshot(logger, metrics)
	} else {
		err = supervisor.New(cfg, logger).Run()
	}
	if err != nil {
		logger.Error("exited with error", "err", err)
		os.Exit(1)
	}
}

func logSnapshot(logger *logging.Logger, m *gopherd.Metrics) {
	snap := m.Snapshot()
	logger.Info("worker metrics",
		"accepted", snap.ConnectionsAccepted,
		"rejected", snap.ConnectionsRejected,
		"static_served", snap.StaticFilesServed,
		"cgi_launched", snap.CGILaunched,
		"timeouts", snap.Timeouts,
		"errors", snap.TotalErrors,
	)
}

// runWorkerFromEnv builds a Config from the environment variables a
// supervisor re-exec passes down (see internal/supervisor's package doc
// comment) and runs a single worker in the foreground.
func runWorkerFromEnv() {
	runtime.LockOSThread()

	logger := logging.NewLogger(logging.DefaultConfig())
	logging.SetDefault(logger)

	port, err := strconv.Atoi(os.Getenv(constants.EnvPort))
	if err != nil {
		logger.Error("invalid worker port from environment", "err", err)
		os.Exit(1)
	}
	maxClients, err := strconv.Atoi(os.Getenv(constants.EnvMaxClients))
	if err != nil {
		logger.Error("invalid worker maxclients from environment", "err", err)
		os.Exit(1)
	}
	timeout, err := time.ParseDuration(os.Getenv(constants.EnvTimeout))
	if err != nil {
		logger.Error("invalid worker timeout from environment", "err", err)
		os.Exit(1)
	}

	cfg := &gopherd.Config{
		Directory:   os.Getenv(constants.EnvDirectory),
		Hostname:    os.Getenv(constants.EnvHostname),
		IndexFile:   os.Getenv(constants.EnvIndexFile),
		MaxClients:  maxClients,
		Port:        port,
		Timeout:     timeout,
		WorkerCount: 1,
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid worker configuration", "err", err)
		os.Exit(1)
	}

	index := os.Getenv(constants.EnvWorkerIndex)
	logger.Info("worker starting", "index", index, "pid", os.Getpid())

	metrics := gopherd.NewMetrics()
	observer := worker.MetricsAdapter{Observer: gopherd.NewMetricsObserver(metrics)}
	err = worker.New(cfg, logger, observer).Run()
	logSnapshot(logger, metrics)
	if err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}
