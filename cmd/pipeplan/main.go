package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/astrokit/pipeplan/internal/app"
	"github.com/astrokit/pipeplan/internal/cli"
	"github.com/astrokit/pipeplan/internal/repo"
)

// main is the entrypoint for the pipeplan application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW, logW io.Writer, args []string) error {
	opts, err := cli.Parse(args)
	if err != nil {
		return err
	}

	a := app.New(outW, logW, app.ProcessExposure(), repo.RootsFromEnv(), os.Getenv(app.EnvObsRoot))
	defer a.Close()

	p, proceed, err := a.Resolve(context.Background(), opts)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}

	// Execution itself lives downstream; the resolved plan summary is the
	// hand-off point.
	slog.Info("plan ready",
		"input", p.InputRepo, "output", p.OutputRepo,
		"camera", p.Camera, "identifiers", len(p.Identifiers))
	return nil
}
