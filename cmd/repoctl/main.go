package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"repoctl/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{}
	defer func() { _ = app.Close() }()

	if err := cli.NewRootCmd(app).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
