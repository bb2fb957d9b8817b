// Command gopherbench is a load-testing client for Gopher servers: it opens
// a fresh connection per attempt, sends one selector, reads the response to
// EOF, and reports throughput and failure counts (spec §4.7).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gophernest/sgopherd/internal/bench"
	"github.com/gophernest/sgopherd/internal/constants"
	"github.com/gophernest/sgopherd/internal/logging"
)

func main() {
	var (
		address  = flag.String("address", constants.DefaultBenchAddress, "address of the gopher server")
		duration = flag.Duration("duration", constants.DefaultBenchDuration, "duration of the test")
		port     = flag.Int("port", constants.DefaultBenchPort, "network port")
		request  = flag.String("request", constants.DefaultBenchRequest, "selector to request")
		size     = flag.Int("size", constants.DefaultBenchSize, "expected response size in bytes (0 disables the check)")
		timeout  = flag.Duration("timeout", constants.DefaultBenchTimeout, "per-attempt connect/read timeout")
		workers  = flag.Int("workers", constants.DefaultBenchWorkers, "number of concurrent workers")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)

	fmt.Fprintf(os.Stderr, "Address: %s\n", *address)
	fmt.Fprintf(os.Stderr, "Port: %d\n", *port)
	fmt.Fprintf(os.Stderr, "Duration: %s\n", *duration)
	fmt.Fprintf(os.Stderr, "Request: %s\n", *request)
	fmt.Fprintf(os.Stderr, "Expected size: %d\n", *size)
	fmt.Fprintf(os.Stderr, "Timeout: %s\n", *timeout)
	fmt.Fprintf(os.Stderr, "Workers: %d\n", *workers)

	cfg := bench.Config{
		Address:  *address,
		Port:     *port,
		Request:  *request,
		Size:     *size,
		Timeout:  *timeout,
		Duration: *duration,
		Workers:  *workers,
		Logger:   logger,
	}

	results := bench.Run(cfg)
	snap := results.Snapshot()

	seconds := (*duration).Seconds()
	if seconds <= 0 {
		seconds = 1
	}

	fmt.Printf("Number of attempts: %d\n", snap.Total)
	fmt.Printf("Rate of attempts: %.2f per second\n", float64(snap.Total)/seconds)
	fmt.Printf("Number of successful requests: %d\n", snap.Successful)
	fmt.Printf("Rate of successful requests: %.2f per second\n", float64(snap.Successful)/seconds)

	if snap.Timeout > 0 {
		fmt.Printf("Number of timeouts: %d\n", snap.Timeout)
	}
	if snap.Mismatch > 0 {
		fmt.Printf("Number of size mismatches: %d\n", snap.Mismatch)
	}

	if snap.Successful == 0 {
		os.Exit(1)
	}
}
