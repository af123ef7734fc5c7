package machine

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ParamSpec declares one machine parameter.
type ParamSpec struct {
	Name        string
	Type        cty.Type
	Description string
	// Default is applied when the caller supplies no value. A parameter
	// without a default is required.
	Default *cty.Value
}

// ParamError reports a parameter validation failure for one invocation.
// The task carrying it is blocked, sibling tasks proceed.
type ParamError struct {
	Machine string
	Param   string
	Reason  string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("machine %q: parameter %q: %s", e.Machine, e.Param, e.Reason)
}

// SolveParams validates the supplied values against the declared specs,
// converts them to the declared types and fills in defaults. Unknown keys
// and missing required parameters are errors.
func SolveParams(machineName string, specs []ParamSpec, values map[string]cty.Value) (map[string]cty.Value, error) {
	declared := map[string]ParamSpec{}
	for _, p := range specs {
		declared[p.Name] = p
	}
	for name := range values {
		if _, ok := declared[name]; !ok {
			return nil, &ParamError{Machine: machineName, Param: name, Reason: "not declared"}
		}
	}

	solved := make(map[string]cty.Value, len(specs))
	for _, p := range specs {
		val, given := values[p.Name]
		switch {
		case given:
			if p.Type != cty.NilType {
				converted, err := convert.Convert(val, p.Type)
				if err != nil {
					return nil, &ParamError{Machine: machineName, Param: p.Name, Reason: err.Error()}
				}
				val = converted
			}
			solved[p.Name] = val
		case p.Default != nil:
			solved[p.Name] = *p.Default
		default:
			return nil, &ParamError{Machine: machineName, Param: p.Name, Reason: "required value missing"}
		}
	}
	return solved, nil
}
