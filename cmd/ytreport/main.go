// Package main is the entry point for the ytreport CLI
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yt-insights/ytreport/internal/cli"
)

// Set at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	cli.SetBuildInfo(version, commit, buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Main(ctx)
	stop()
	os.Exit(code)
}
