package task

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/datamill-io/datamill/internal/bind"
	"github.com/datamill-io/datamill/internal/ctxlog"
	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/machine"
	"github.com/datamill-io/datamill/internal/query"
)

// Options is one build request.
type Options struct {
	// Params are the caller-supplied parameter values, matched per stage
	// against its declarations.
	Params map[string]cty.Value
	// Overrides supply target types for variable inputs, keyed by input
	// name.
	Overrides map[string]string
	// Attachments are merged onto matching resolved bindings.
	Attachments map[bind.AttachKey]machine.Attachment
	// NoFallback disables branch fallback for the whole request.
	NoFallback bool
	// Overwrite plans tasks whose output already exists as runnable
	// instead of skipped.
	Overwrite bool
}

func (o Options) bindOptions() bind.Options {
	return bind.Options{
		Overrides:   o.Overrides,
		Attachments: o.Attachments,
		NoFallback:  o.NoFallback,
	}
}

// Builder turns a machine name and an identifier pattern into tasks.
type Builder struct {
	reg    *machine.Registry
	query  *query.Resolver
	binder *bind.Binder
}

// NewBuilder creates a Builder over the registry and resolver.
func NewBuilder(reg *machine.Registry, q *query.Resolver) *Builder {
	return &Builder{reg: reg, query: q, binder: bind.New(q)}
}

// Build expands machineName over pattern p into a flat, ordered task list.
// Meta-machines contribute one block of tasks per stage, in chain order;
// within a stage tasks are sorted by output identifier. Every planned task
// is returned, including skipped, pending and blocked ones.
func (b *Builder) Build(ctx context.Context, machineName string, p ident.Pattern, opts Options) ([]*Task, error) {
	stages, err := b.reg.Stages(machineName)
	if err != nil {
		return nil, err
	}
	if err := checkParamKeys(machineName, stages, opts.Params); err != nil {
		return nil, err
	}

	log := ctxlog.FromContext(ctx)
	var tasks []*Task
	var prevOutputs []ident.Identifier

	for i, spec := range stages {
		requested, err := b.requestedFor(ctx, spec, p, i, prevOutputs, opts)
		if err != nil {
			return nil, err
		}
		if len(requested) == 0 {
			log.Debug("No identifiers in scope for stage.", "machine", spec.Name, "stage", i)
			prevOutputs = nil
			continue
		}

		solved, paramErr := machine.SolveParams(spec.Name, spec.Params, stageParams(spec, opts.Params))

		groups, err := b.binder.Bind(ctx, spec, requested, opts.bindOptions())
		if err != nil {
			return nil, err
		}

		stageTasks := make([]*Task, 0, len(groups))
		for _, g := range groups {
			t := &Task{
				ID:     uuid.New(),
				Spec:   spec,
				Stage:  i,
				Scope:  requested,
				Output: g.Output,
				Group:  g,
				Params: solved,
				Opts:   opts,
			}
			b.classify(t, paramErr)
			stageTasks = append(stageTasks, t)
		}
		sort.SliceStable(stageTasks, func(a, b int) bool {
			return ident.Compare(stageTasks[a].Output, stageTasks[b].Output) < 0
		})
		tasks = append(tasks, stageTasks...)

		prevOutputs = prevOutputs[:0]
		for _, t := range stageTasks {
			prevOutputs = append(prevOutputs, t.Output)
		}
	}
	return tasks, nil
}

// Refresh re-binds a pending task against its original scope and
// reclassifies it. Non-pending tasks are left untouched.
func (b *Builder) Refresh(ctx context.Context, t *Task) error {
	if t.Status != StatusPending {
		return nil
	}
	groups, err := b.binder.Bind(ctx, t.Spec, t.Scope, t.Opts.bindOptions())
	if err != nil {
		return err
	}
	for _, g := range groups {
		if !g.Output.Equal(t.Output) {
			continue
		}
		t.Group = g
		b.classify(t, nil)
		return nil
	}
	return nil
}

// classify assigns the planned status from the bound group and the
// parameter outcome.
func (b *Builder) classify(t *Task, paramErr error) {
	switch {
	case paramErr != nil:
		t.Status = StatusBlocked
		t.Err = paramErr
	case len(t.Group.Missing) > 0:
		t.Status = StatusPending
		t.Missing = t.Group.Missing
	case t.Spec.Output != "" && !t.Opts.Overwrite && b.query.Store().Exists(t.Spec.Output, t.Output):
		t.Status = StatusSkip
		t.Missing = nil
	default:
		t.Status = StatusRunnable
		t.Missing = nil
	}
}

// requestedFor derives the identifier scope of one stage. The first stage
// matches the pattern against its effective input types (or, for machines
// without inputs, the output type); later stages inherit the previous
// stage's planned outputs.
func (b *Builder) requestedFor(ctx context.Context, spec *machine.Spec, p ident.Pattern, stage int, prevOutputs []ident.Identifier, opts Options) ([]ident.Identifier, error) {
	if stage > 0 {
		return append([]ident.Identifier(nil), prevOutputs...), nil
	}
	if p.Kind == ident.Literal {
		return []ident.Identifier{p.ID}, nil
	}

	var types []string
	for _, in := range spec.Inputs {
		typeName := in.Type
		if in.Variable {
			if override, ok := opts.Overrides[in.Name]; ok {
				typeName = override
			}
		}
		if typeName != "" {
			types = append(types, typeName)
		}
	}
	if len(types) == 0 {
		if spec.Output == "" {
			return nil, fmt.Errorf("machine %q: pattern %q needs inputs or an output to match against", spec.Name, p.String())
		}
		types = []string{spec.Output}
	}

	seen := map[string]struct{}{}
	var requested []ident.Identifier
	for _, typeName := range types {
		matches, err := b.query.Match(ctx, typeName, p)
		if err != nil {
			return nil, err
		}
		for _, id := range matches {
			key := id.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			requested = append(requested, id)
		}
	}
	return requested, nil
}

// stageParams restricts the request parameters to the ones the stage
// declares, so chain stages only see their own values.
func stageParams(spec *machine.Spec, values map[string]cty.Value) map[string]cty.Value {
	if len(values) == 0 {
		return nil
	}
	out := map[string]cty.Value{}
	for _, p := range spec.Params {
		if v, ok := values[p.Name]; ok {
			out[p.Name] = v
		}
	}
	return out
}

// checkParamKeys rejects parameter keys no stage declares.
func checkParamKeys(machineName string, stages []*machine.Spec, values map[string]cty.Value) error {
	if len(values) == 0 {
		return nil
	}
	declared := map[string]struct{}{}
	for _, s := range stages {
		for _, p := range s.Params {
			declared[p.Name] = struct{}{}
		}
	}
	for name := range values {
		if _, ok := declared[name]; !ok {
			return &machine.ParamError{Machine: machineName, Param: name, Reason: "not declared"}
		}
	}
	return nil
}
