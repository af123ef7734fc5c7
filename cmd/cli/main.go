package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/datamill-io/datamill/internal/app"
	"github.com/datamill-io/datamill/internal/cli"
	"github.com/datamill-io/datamill/internal/task"
	"github.com/datamill-io/datamill/machines/builtin"
)

// main is the entrypoint for the datamill application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	inv, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	a, err := app.New(os.Stderr, &inv.App, afero.NewOsFs(), &builtin.Module{})
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch inv.Mode {
	case cli.ModeList:
		return list(ctx, outW, a, inv.Type)
	case cli.ModeLocation:
		loc, err := a.Location(inv.Type, inv.Request.Pattern)
		if err != nil {
			return err
		}
		fmt.Fprintln(outW, loc)
		return nil
	case cli.ModeRemove:
		return a.Remove(ctx, inv.Type, inv.Request.Pattern)
	}

	summaries, err := a.Run(ctx, inv.Request)
	report(outW, summaries)
	return err
}

func list(ctx context.Context, outW io.Writer, a *app.App, typeName string) error {
	ids, invalid, err := a.ListTargets(ctx, typeName)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(outW, id.String())
	}
	for _, bad := range invalid {
		fmt.Fprintf(outW, "invalid target: %s: %v\n", bad.Path, bad.Err)
	}
	return nil
}

func report(outW io.Writer, summaries []task.Summary) {
	for _, s := range summaries {
		line := fmt.Sprintf("%-8s  %s  %s", s.Status, s.Machine, s.Identifier)
		if len(s.Missing) > 0 {
			line += "  missing: " + strings.Join(s.Missing, ", ")
		}
		if s.Error != "" {
			line += "  error: " + s.Error
		}
		fmt.Fprintln(outW, line)
	}
}
