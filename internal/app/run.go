package app

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/datamill-io/datamill/internal/bind"
	"github.com/datamill-io/datamill/internal/ctxlog"
	"github.com/datamill-io/datamill/internal/executor"
	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/machine"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/internal/task"
)

// Request is one engine invocation: a machine name and an identifier
// pattern, plus the per-request knobs.
type Request struct {
	Machine string
	Pattern string

	Params      map[string]cty.Value
	Overrides   map[string]string
	Attachments map[bind.AttachKey]machine.Attachment

	DryRun     bool
	Overwrite  bool
	NoFallback bool
}

// Run plans and executes the request, returning one summary per planned
// task in execution order. On interruption the summaries reflect the
// statuses reached so far, alongside the error.
func (a *App) Run(ctx context.Context, req Request) ([]task.Summary, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "machine", req.Machine, "pattern", req.Pattern)

	p, err := ident.ParsePattern(req.Pattern, a.seps)
	if err != nil {
		return nil, err
	}

	tasks, err := a.builder.Build(ctx, req.Machine, p, task.Options{
		Params:      req.Params,
		Overrides:   req.Overrides,
		Attachments: req.Attachments,
		NoFallback:  req.NoFallback,
		Overwrite:   req.Overwrite,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build tasks: %w", err)
	}
	a.logger.Debug("Tasks planned.", "count", len(tasks))

	if len(tasks) == 0 {
		a.logger.Warn("No tasks planned for pattern, nothing to run.",
			"machine", req.Machine, "pattern", req.Pattern)
		return nil, nil
	}

	runErr := a.exec.Run(ctx, tasks, executor.Options{
		DryRun:    req.DryRun,
		Overwrite: req.Overwrite,
	})

	summaries := make([]task.Summary, len(tasks))
	for i, t := range tasks {
		summaries[i] = t.Summarize()
	}
	a.logger.Debug("App.Run method finished.", "tasks", len(summaries))
	return summaries, runErr
}

// ListTargets enumerates the stored identifiers of typeName, along with
// the paths that look like targets but do not decode.
func (a *App) ListTargets(ctx context.Context, typeName string) ([]ident.Identifier, []store.InvalidTarget, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return a.store.ListExisting(ctx, typeName)
}

// Location resolves the on-disk directory a (type, identifier) pair lives
// in, whether or not it exists yet.
func (a *App) Location(typeName, token string) (string, error) {
	id, err := ident.Parse(token, a.seps)
	if err != nil {
		return "", err
	}
	return a.store.Location(typeName, id), nil
}

// Remove deletes one stored target.
func (a *App) Remove(ctx context.Context, typeName, token string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	id, err := ident.Parse(token, a.seps)
	if err != nil {
		return err
	}
	return a.store.Remove(ctx, typeName, id)
}

// Machines lists the registered machine and meta-machine names.
func (a *App) Machines() []string {
	return a.registry.Names()
}
