// Package task realizes machine invocations: the builder expands a
// machine (or meta-machine chain) over an identifier pattern into concrete
// tasks, classifies each one, and re-binds pending tasks as earlier passes
// produce their inputs.
package task

import (
	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/datamill-io/datamill/internal/bind"
	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/machine"
)

// Task is one planned machine invocation.
type Task struct {
	// ID identifies the task within a run, for logs and summaries.
	ID uuid.UUID
	// Spec is the machine the task invokes.
	Spec *machine.Spec
	// Stage is the position in the meta-machine chain; 0 for plain
	// machines.
	Stage int
	// Scope is the full requested identifier set the task's stage was
	// built from. Refresh re-binds against it.
	Scope []ident.Identifier
	// Output is the identifier the task produces. Under branch fallback it
	// stays the requested identifier, not the fallen-back one.
	Output ident.Identifier
	// Group holds the resolved input bindings.
	Group bind.Group
	// Params are the solved parameter values, nil when blocked.
	Params map[string]cty.Value
	// Opts is the build request the task was planned under; Refresh reuses
	// it.
	Opts Options

	Status  Status
	Missing []string
	Err     error
}

// Summary is the caller-facing report of one task after a run.
type Summary struct {
	Machine string `json:"machine"`
	// Identifier is the identifier the task was planned for.
	Identifier string `json:"identifier"`
	// OutputIdentifier names the produced target; empty for sink machines.
	// Under branch fallback it equals the requested identifier, not the
	// fallen-back one.
	OutputIdentifier string   `json:"output_identifier,omitempty"`
	Status           string   `json:"status"`
	Missing          []string `json:"missing_inputs,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// Summarize reports the task's current state.
func (t *Task) Summarize() Summary {
	s := Summary{
		Machine:    t.Spec.Name,
		Identifier: t.Output.String(),
		Status:     t.Status.String(),
		Missing:    t.Missing,
	}
	if t.Spec.Output != "" {
		s.OutputIdentifier = t.Output.String()
	}
	if t.Err != nil {
		s.Error = t.Err.Error()
	}
	return s
}
