package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/webtriage/webtriage/cmd"
)

var version = "dev"

func main() {
	// Interrupts cancel the command context so the browser and any
	// in-flight LLM calls shut down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.SetVersion(version)
	cmd.Execute(ctx)
}
