// Command coursectl runs catalog maintenance against the same content and
// data directories as the server, without starting the HTTP listener.
//
// Configuration is read from the environment (and .env) exactly as the
// server reads it; see package startup for the variables.
//
// Usage:
//
//	coursectl scan [--force] [--preserve=false]
//	coursectl status
//	coursectl rescan-course <folder>
//	coursectl remove-course <folder>
//
// Running a scan while the server is up is safe; SQLite serialises the
// writers, but the server's scan status does not reflect scans run here.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
