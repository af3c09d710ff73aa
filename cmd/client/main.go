package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/cli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cli.Execute(ctx, cli.BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
	}, os.Args[1:])

	stop()
	os.Exit(code)
}
