// Package machine defines processing-unit specifications: their typed
// inputs and outputs, parameters, aggregation and requires policies, the
// invocation contract, and the registry the engine resolves names against.
package machine

import (
	"context"
	"fmt"
)

// AggregateMode is the grouping strategy combining inputs across
// identifiers.
type AggregateMode int

const (
	// AggregateNone builds one task per identifier.
	AggregateNone AggregateMode = iota
	// AggregateAll merges all inputs across indices and branches into one
	// group.
	AggregateAll
	// AggregateIndex groups by index, merging branches.
	AggregateIndex
	// AggregateBranch groups by branch, merging indices.
	AggregateBranch
)

// ParseAggregateMode maps a manifest token to an AggregateMode.
func ParseAggregateMode(s string) (AggregateMode, error) {
	switch s {
	case "", "none":
		return AggregateNone, nil
	case "all":
		return AggregateAll, nil
	case "index":
		return AggregateIndex, nil
	case "branch":
		return AggregateBranch, nil
	}
	return AggregateNone, fmt.Errorf("invalid aggregate mode %q", s)
}

// RequiresMode is the all-or-any policy deciding which bound inputs are
// mandatory for a task to run.
type RequiresMode int

const (
	// RequiresAll realizes a task only when every declared input is bound.
	RequiresAll RequiresMode = iota
	// RequiresAny realizes a task when at least one input is bound;
	// missing ones surface as explicit absent entries.
	RequiresAny
)

// ParseRequiresMode maps a manifest token to a RequiresMode.
func ParseRequiresMode(s string) (RequiresMode, error) {
	switch s {
	case "", "all":
		return RequiresAll, nil
	case "any":
		return RequiresAny, nil
	}
	return RequiresAll, fmt.Errorf("invalid requires mode %q", s)
}

// InputSpec declares one named input of a machine.
type InputSpec struct {
	// Name is the binding name the function reads the input under.
	Name string
	// Type is the target type name; empty for a variable input until the
	// caller supplies an override.
	Type string
	// Variable marks an input whose target type comes from a per-request
	// override instead of the static spec.
	Variable bool
	// NoFallback disables branch fallback for this input.
	NoFallback bool
}

// Func is a machine's processing function. It receives the explicit
// invocation context carrying bound inputs, identifiers, attachments and
// parameter values, and returns the output artifact value.
type Func func(ctx context.Context, call *Call) (any, error)

// Spec declares a machine: name, inputs, single optional output target
// type, parameters, and the aggregation/requires policies. Immutable after
// registration.
type Spec struct {
	Name        string
	Description string
	Inputs      []InputSpec
	Output      string
	Params      []ParamSpec
	Aggregate   AggregateMode
	Requires    RequiresMode
	Fn          Func
}

// New starts a builder-style spec for fn.
func New(name string, fn Func) *Spec {
	return &Spec{Name: name, Fn: fn}
}

// AddInput appends an input declaration and returns the spec for chaining.
func (s *Spec) AddInput(in InputSpec) *Spec {
	s.Inputs = append(s.Inputs, in)
	return s
}

// AddOutput sets the single output target type. Multiple outputs are not
// authorized for plain machines.
func (s *Spec) AddOutput(typeName string) *Spec {
	if s.Output != "" {
		panic(fmt.Sprintf("machine %q: output already set to %q", s.Name, s.Output))
	}
	s.Output = typeName
	return s
}

// AddParameter appends a parameter declaration.
func (s *Spec) AddParameter(p ParamSpec) *Spec {
	s.Params = append(s.Params, p)
	return s
}

// WithAggregate sets the aggregation mode.
func (s *Spec) WithAggregate(mode AggregateMode) *Spec {
	s.Aggregate = mode
	return s
}

// WithRequires sets the requires policy.
func (s *Spec) WithRequires(mode RequiresMode) *Spec {
	s.Requires = mode
	return s
}

// Input looks up an input spec by name.
func (s *Spec) Input(name string) (InputSpec, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSpec{}, false
}

// InputNames returns the declared input names in order.
func (s *Spec) InputNames() []string {
	names := make([]string, len(s.Inputs))
	for i, in := range s.Inputs {
		names[i] = in.Name
	}
	return names
}

// Validate checks internal consistency: unique input names, no parameter
// shadowing an input, and a function for executable specs.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("machine has no name")
	}
	seen := map[string]struct{}{}
	for _, in := range s.Inputs {
		if in.Name == "" {
			return fmt.Errorf("machine %q: input with empty name", s.Name)
		}
		if _, dup := seen[in.Name]; dup {
			return fmt.Errorf("machine %q: duplicate input %q", s.Name, in.Name)
		}
		seen[in.Name] = struct{}{}
		if in.Type == "" && !in.Variable {
			return fmt.Errorf("machine %q: input %q has no target type", s.Name, in.Name)
		}
	}
	for _, p := range s.Params {
		if _, clash := seen[p.Name]; clash {
			return fmt.Errorf("machine %q: parameter %q overlaps an input", s.Name, p.Name)
		}
	}
	if s.Fn == nil {
		return fmt.Errorf("machine %q: no function bound", s.Name)
	}
	return nil
}
