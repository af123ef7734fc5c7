// Package executor runs planned tasks sequentially, persists their
// outputs, and repeats passes so tasks pending on intermediate artifacts
// converge once earlier tasks have produced them.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/datamill-io/datamill/internal/ctxlog"
	"github.com/datamill-io/datamill/internal/machine"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/internal/task"
)

// Options tunes one run.
type Options struct {
	// DryRun plans and classifies only; no machine function is invoked and
	// nothing is written.
	DryRun bool
	// Overwrite replaces existing outputs instead of skipping their tasks.
	Overwrite bool
}

// Executor drives tasks against a store, one at a time.
type Executor struct {
	store   *store.Store
	builder *task.Builder
}

// New creates an Executor over st, using b to re-bind pending tasks
// between passes.
func New(st *store.Store, b *task.Builder) *Executor {
	return &Executor{store: st, builder: b}
}

// Run executes the runnable tasks in order, mutating their statuses in
// place. After a pass in which at least one task succeeded, pending tasks
// are re-bound and a further pass runs any that became runnable. A failed
// task does not stop its siblings; context cancellation does, leaving the
// remaining tasks in their planned states.
func (e *Executor) Run(ctx context.Context, tasks []*task.Task, opts Options) error {
	if opts.Overwrite {
		for _, t := range tasks {
			if t.Status == task.StatusSkip {
				t.Status = task.StatusRunnable
			}
		}
	}
	if opts.DryRun {
		return nil
	}

	log := ctxlog.FromContext(ctx)
	for {
		progressed := false
		for _, t := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if t.Status != task.StatusRunnable {
				continue
			}
			log.Info("Running task.",
				"machine", t.Spec.Name, "identifier", t.Output.String(), "task", t.ID.String())
			if err := e.runOne(ctx, t, opts); err != nil {
				t.Status = task.StatusFailed
				t.Err = err
				log.Error("Task failed.",
					"machine", t.Spec.Name, "identifier", t.Output.String(), "error", err)
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				continue
			}
			t.Status = task.StatusDone
			progressed = true
		}
		if !progressed {
			return nil
		}

		runnable := false
		for _, t := range tasks {
			if t.Status != task.StatusPending {
				continue
			}
			if err := e.builder.Refresh(ctx, t); err != nil {
				return err
			}
			if t.Status == task.StatusRunnable {
				runnable = true
			}
		}
		if !runnable {
			return nil
		}
	}
}

// runOne loads the bound inputs, invokes the machine function and persists
// the output.
func (e *Executor) runOne(ctx context.Context, t *task.Task, opts Options) error {
	inputs := make(map[string][]machine.InputValue, len(t.Group.Inputs))
	for _, in := range t.Spec.Inputs {
		for _, binding := range t.Group.Inputs[in.Name] {
			value := machine.InputValue{ID: binding.ID, Attach: binding.Attach}
			if binding.Found {
				data, err := e.store.Read(ctx, binding.Type, binding.ID)
				if err != nil {
					return fmt.Errorf("input %q (%s %s): %w", in.Name, binding.Type, binding.ID.String(), err)
				}
				value.Data = data
			} else {
				value.Absent = true
			}
			inputs[in.Name] = append(inputs[in.Name], value)
		}
	}

	call := &machine.Call{Output: t.Output, Inputs: inputs, Params: t.Params}
	result, err := t.Spec.Fn(ctx, call)
	if err != nil {
		return err
	}

	if t.Spec.Output == "" {
		return nil
	}
	mode := store.ModeReadOnly
	if opts.Overwrite {
		mode = store.ModeOverwrite
	}
	if err := e.store.Write(ctx, t.Spec.Output, t.Output, result, mode); err != nil {
		return fmt.Errorf("output %s %s: %w", t.Spec.Output, t.Output.String(), err)
	}
	return nil
}
