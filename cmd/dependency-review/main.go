// ABOUTME: Entry point for the dependency-review CLI.
// ABOUTME: Handles signal-driven cancellation and process exit codes.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/cli"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel in-flight API calls on shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	os.Exit(cli.Execute(ctx))
}
