package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/calliope-fm/calliope/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(logger)

	app := &cli.Command{
		Name:     "calliope",
		Usage:    "Music streaming backend",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
