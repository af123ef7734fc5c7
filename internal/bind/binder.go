// Package bind computes, for a machine spec and a set of requested output
// identifiers, the concrete input targets each task will read: it applies
// variable-type overrides, branch fallback, aggregation grouping and the
// requires policy, and merges externally supplied attachments onto the
// resolved bindings.
package bind

import (
	"context"
	"fmt"
	"sort"

	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/machine"
	"github.com/datamill-io/datamill/internal/query"
)

// Binding is one resolved input occurrence.
type Binding struct {
	// Input is the declared input name.
	Input string
	// Type is the effective target type (override applied for variable
	// inputs).
	Type string
	// ID is the identifier the read resolved to; under branch fallback it
	// differs from the requested identifier. For an unresolved binding it
	// is the requested identifier.
	ID ident.Identifier
	// Found reports whether a stored target satisfies the binding.
	Found bool
	// Attach is the attachment merged onto this binding, if any.
	Attach machine.Attachment
}

// Group is the binding set realizing one task: all inputs for one output
// identifier (or one aggregation group).
type Group struct {
	// Output is the identifier the resulting task produces.
	Output ident.Identifier
	// Inputs maps input names to their bindings, one entry per occurrence;
	// non-aggregating machines have at most one binding per input.
	Inputs map[string][]Binding
	// Missing lists the input names that block the group under the
	// machine's requires policy.
	Missing []string
}

// AttachKey addresses an attachment at a specific (type, identifier)
// binding.
type AttachKey struct {
	Type string
	ID   string
}

// AttachTo builds the key for an attachment aimed at (typeName, id).
func AttachTo(typeName string, id ident.Identifier) AttachKey {
	return AttachKey{Type: typeName, ID: id.Key()}
}

// Options tunes one binding pass.
type Options struct {
	// Overrides supplies the target type for variable inputs, keyed by
	// input name.
	Overrides map[string]string
	// Attachments are merged onto the matching resolved bindings; keys
	// that match no binding have no effect.
	Attachments map[AttachKey]machine.Attachment
	// NoFallback disables branch fallback for the whole pass.
	NoFallback bool
}

// Binder resolves input bindings through a query resolver.
type Binder struct {
	query *query.Resolver
}

// New creates a Binder over q.
func New(q *query.Resolver) *Binder {
	return &Binder{query: q}
}

// Bind computes the binding groups for spec over the requested output
// identifiers. The resolution pipeline is explicitly ordered: effective
// input types, then per-identifier fallback lookups, then aggregation
// grouping, then the requires policy, then attachment merge.
func (b *Binder) Bind(ctx context.Context, spec *machine.Spec, requested []ident.Identifier, opts Options) ([]Group, error) {
	inputs, err := effectiveInputs(spec, opts.Overrides)
	if err != nil {
		return nil, err
	}

	if spec.Aggregate == machine.AggregateNone {
		return b.bindEach(ctx, spec, inputs, requested, opts), nil
	}
	return b.bindGroups(ctx, spec, inputs, requested, opts), nil
}

// effectiveInputs applies variable-type overrides to the declared inputs.
func effectiveInputs(spec *machine.Spec, overrides map[string]string) ([]machine.InputSpec, error) {
	inputs := make([]machine.InputSpec, 0, len(spec.Inputs))
	for _, in := range spec.Inputs {
		if in.Variable {
			typeName, ok := overrides[in.Name]
			if !ok {
				if in.Type == "" {
					return nil, fmt.Errorf("machine %q: variable input %q has no type override", spec.Name, in.Name)
				}
				typeName = in.Type
			}
			in.Type = typeName
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// fallbackAllowed reproduces the policy the resolver is called with: the
// pass-level switch, the per-input flag, and the requires="any" +
// aggregation combination that would otherwise mask genuinely missing
// groups.
func fallbackAllowed(spec *machine.Spec, in machine.InputSpec, opts Options) bool {
	if opts.NoFallback || in.NoFallback {
		return false
	}
	if spec.Requires == machine.RequiresAny && spec.Aggregate != machine.AggregateNone {
		return false
	}
	return true
}

// bindEach produces one group per requested identifier.
func (b *Binder) bindEach(ctx context.Context, spec *machine.Spec, inputs []machine.InputSpec, requested []ident.Identifier, opts Options) []Group {
	groups := make([]Group, 0, len(requested))
	for _, id := range requested {
		group := Group{Output: id, Inputs: map[string][]Binding{}}
		for _, in := range inputs {
			binding := b.resolveOne(ctx, spec, in, id, opts)
			if binding.Found {
				group.Inputs[in.Name] = []Binding{binding}
			} else if spec.Requires == machine.RequiresAny {
				group.Inputs[in.Name] = []Binding{binding}
			}
		}
		group.Missing = missingInputs(spec, inputs, group.Inputs)
		groups = append(groups, group)
	}
	return groups
}

// bindGroups collects the bindings across the full requested scope, then
// partitions them by the aggregation key.
func (b *Binder) bindGroups(ctx context.Context, spec *machine.Spec, inputs []machine.InputSpec, requested []ident.Identifier, opts Options) []Group {
	type keyed struct {
		output ident.Identifier
		inputs map[string][]Binding
	}
	groups := map[string]*keyed{}
	var order []string

	for _, id := range requested {
		output := groupOutput(spec.Aggregate, id)
		key := output.Key()
		g, ok := groups[key]
		if !ok {
			g = &keyed{output: output, inputs: map[string][]Binding{}}
			groups[key] = g
			order = append(order, key)
		}
		for _, in := range inputs {
			binding := b.resolveOne(ctx, spec, in, id, opts)
			if binding.Found {
				g.inputs[in.Name] = append(g.inputs[in.Name], binding)
			}
		}
	}

	out := make([]Group, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if spec.Requires == machine.RequiresAny {
			// Inputs with no member at all surface as explicit absent
			// entries instead of excluding the group.
			for _, in := range inputs {
				if len(g.inputs[in.Name]) == 0 {
					g.inputs[in.Name] = []Binding{{
						Input: in.Name,
						Type:  in.Type,
						ID:    g.output,
						Found: false,
					}}
				}
			}
		}
		group := Group{Output: g.output, Inputs: g.inputs}
		group.Missing = missingInputs(spec, inputs, g.inputs)
		out = append(out, group)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return ident.Compare(out[i].Output, out[j].Output) < 0
	})
	return out
}

// resolveOne resolves a single (input, identifier) binding and merges its
// attachment.
func (b *Binder) resolveOne(ctx context.Context, spec *machine.Spec, in machine.InputSpec, id ident.Identifier, opts Options) Binding {
	resolved, found := b.query.ResolveInput(ctx, in.Type, id, fallbackAllowed(spec, in, opts))
	binding := Binding{Input: in.Name, Type: in.Type, ID: id, Found: found}
	if found {
		binding.ID = resolved
	}
	if attach, ok := opts.Attachments[AttachTo(in.Type, binding.ID)]; ok && found {
		binding.Attach = attach.Clone()
	}
	return binding
}

// groupOutput derives the output identifier of an aggregation group from
// one of its member identifiers.
func groupOutput(mode machine.AggregateMode, id ident.Identifier) ident.Identifier {
	switch mode {
	case machine.AggregateAll:
		return ident.Identifier{}
	case machine.AggregateIndex:
		return ident.Identifier{Index: id.Index}
	case machine.AggregateBranch:
		return ident.Identifier{Branch: id.Branch}
	}
	return id
}

// missingInputs evaluates the requires policy over the bound inputs.
func missingInputs(spec *machine.Spec, inputs []machine.InputSpec, bound map[string][]Binding) []string {
	var missing []string
	anyFound := false
	for _, in := range inputs {
		found := false
		for _, bd := range bound[in.Name] {
			if bd.Found {
				found = true
				anyFound = true
				break
			}
		}
		if !found {
			missing = append(missing, in.Name)
		}
	}

	switch spec.Requires {
	case machine.RequiresAny:
		if len(inputs) == 0 || anyFound {
			return nil
		}
		return missing
	default:
		return missing
	}
}
