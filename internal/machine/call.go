package machine

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/datamill-io/datamill/internal/ident"
)

// InputValue is one bound input occurrence handed to a machine function.
type InputValue struct {
	// ID is the identifier the value was resolved under. Branch fallback
	// may make it differ from the task's output identifier.
	ID ident.Identifier
	// Data is the loaded artifact value; nil when Absent.
	Data any
	// Attach carries the attachment merged onto this binding.
	Attach Attachment
	// Absent marks a requires="any" placeholder for an input that had no
	// stored target.
	Absent bool
}

// Call is the explicit invocation context passed to every machine
// function. Machine code never reaches for ambient state; everything it
// may read is here.
type Call struct {
	// Output is the identifier the task produces, when the machine
	// declares an output.
	Output ident.Identifier
	// Inputs holds the bound values per input name. Non-aggregating
	// machines see exactly one entry per bound input; aggregating ones see
	// the whole group in discovery order.
	Inputs map[string][]InputValue
	// Params holds the solved parameter values.
	Params map[string]cty.Value
}

// Input returns the single bound value for name. For aggregated inputs it
// returns the first occurrence.
func (c *Call) Input(name string) (InputValue, bool) {
	vals := c.Inputs[name]
	if len(vals) == 0 {
		return InputValue{}, false
	}
	return vals[0], true
}

// Values returns every present (non-absent) value bound under name.
func (c *Call) Values(name string) []any {
	var out []any
	for _, v := range c.Inputs[name] {
		if !v.Absent {
			out = append(out, v.Data)
		}
	}
	return out
}

// Identifiers returns the identifiers of every present value bound under
// name.
func (c *Call) Identifiers(name string) []ident.Identifier {
	var out []ident.Identifier
	for _, v := range c.Inputs[name] {
		if !v.Absent {
			out = append(out, v.ID)
		}
	}
	return out
}

// Param returns the solved parameter value, or cty.NilVal when absent.
func (c *Call) Param(name string) cty.Value {
	val, ok := c.Params[name]
	if !ok {
		return cty.NilVal
	}
	return val
}
