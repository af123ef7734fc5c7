// Package builtin ships the generic handler functions compiled into the
// datamill binary. Manifest machines bind to them by name; they carry no
// target types of their own.
package builtin

import (
	"context"
	"fmt"
	"sort"

	"github.com/datamill-io/datamill/internal/machine"
)

// Module implements the machine.Module interface for this package.
type Module struct{}

// OnPassthrough copies the single bound input value to the output
// unchanged.
func OnPassthrough(ctx context.Context, call *machine.Call) (any, error) {
	var values []any
	for name := range call.Inputs {
		values = append(values, call.Values(name)...)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("passthrough expects exactly one bound value, got %d", len(values))
	}
	return values[0], nil
}

// OnCollect gathers every present input value into a map keyed by its
// identifier.
func OnCollect(ctx context.Context, call *machine.Call) (any, error) {
	out := map[string]any{}
	for name := range call.Inputs {
		for _, v := range call.Inputs[name] {
			if v.Absent {
				continue
			}
			out[v.ID.String()] = v.Data
		}
	}
	return out, nil
}

// OnMergeMaps merges map-valued inputs into one map. Inputs are visited in
// sorted name order, occurrences in binding order; later keys override
// earlier ones.
func OnMergeMaps(ctx context.Context, call *machine.Call) (any, error) {
	names := make([]string, 0, len(call.Inputs))
	for name := range call.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := map[string]any{}
	for _, name := range names {
		for _, value := range call.Values(name) {
			m, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("input %q: merge expects a map value, got %T", name, value)
			}
			for k, v := range m {
				out[k] = v
			}
		}
	}
	return out, nil
}

// Register publishes the handlers with the engine.
func (m *Module) Register(r *machine.Registry) {
	r.RegisterHandler("passthrough", OnPassthrough)
	r.RegisterHandler("collect", OnCollect)
	r.RegisterHandler("merge_maps", OnMergeMaps)
}
