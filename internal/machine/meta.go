package machine

import (
	"fmt"
)

// MetaSpec is an ordered chain of machine specs registered as a single
// program. Each stage's output feeds the next stage's matching input; the
// intermediate target types are implicit and not addressable outside the
// chain. The chain is expanded once at task-build time into a flat stage
// list — there is no dynamic dispatch.
type MetaSpec struct {
	Name        string
	Description string
	Stages      []*Spec
}

// NewMeta builds a meta-machine from an ordered stage list.
func NewMeta(name string, stages ...*Spec) *MetaSpec {
	return &MetaSpec{Name: name, Stages: stages}
}

// Validate checks the chain: every stage is valid and, from the second
// stage on, consumes the previous stage's output type.
func (m *MetaSpec) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("meta-machine has no name")
	}
	if len(m.Stages) == 0 {
		return fmt.Errorf("meta-machine %q has no stages", m.Name)
	}
	for i, stage := range m.Stages {
		if err := stage.Validate(); err != nil {
			return fmt.Errorf("meta-machine %q stage %d: %w", m.Name, i, err)
		}
		if i == 0 {
			continue
		}
		prev := m.Stages[i-1]
		if prev.Output == "" {
			return fmt.Errorf("meta-machine %q: stage %d (%s) has no output to feed stage %d", m.Name, i-1, prev.Name, i)
		}
		if !consumes(stage, prev.Output) {
			return fmt.Errorf("meta-machine %q: stage %d (%s) does not consume %q produced by stage %d", m.Name, i, stage.Name, prev.Output, i-1)
		}
	}
	return nil
}

// IntermediateTypes lists the target types produced and consumed inside
// the chain (every stage output except the last).
func (m *MetaSpec) IntermediateTypes() []string {
	var types []string
	for i := 0; i < len(m.Stages)-1; i++ {
		if out := m.Stages[i].Output; out != "" {
			types = append(types, out)
		}
	}
	return types
}

func consumes(s *Spec, typeName string) bool {
	for _, in := range s.Inputs {
		if in.Type == typeName {
			return true
		}
	}
	return false
}
