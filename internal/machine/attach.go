package machine

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Attachment is an auxiliary keyed payload merged onto one input binding
// before invocation. Values are typed variants, validated lazily when the
// machine function reads a specific key.
type Attachment map[string]cty.Value

// Merge copies the entries of other into a. Without overwrite, a duplicate
// key is an error.
func (a Attachment) Merge(other Attachment, overwrite bool) error {
	for key, val := range other {
		if _, exists := a[key]; exists && !overwrite {
			return fmt.Errorf("attachment key %q already set", key)
		}
		a[key] = val
	}
	return nil
}

// Clone returns a shallow copy.
func (a Attachment) Clone() Attachment {
	out := make(Attachment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// String reads a key as a string, converting when possible.
func (a Attachment) String(key string) (string, error) {
	var out string
	if err := a.decode(key, cty.String, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Number reads a key as a float64, converting when possible.
func (a Attachment) Number(key string) (float64, error) {
	var out float64
	if err := a.decode(key, cty.Number, &out); err != nil {
		return 0, err
	}
	return out, nil
}

// Bool reads a key as a bool, converting when possible.
func (a Attachment) Bool(key string) (bool, error) {
	var out bool
	if err := a.decode(key, cty.Bool, &out); err != nil {
		return false, err
	}
	return out, nil
}

func (a Attachment) decode(key string, ty cty.Type, out any) error {
	val, ok := a[key]
	if !ok {
		return fmt.Errorf("attachment key %q not set", key)
	}
	converted, err := convert.Convert(val, ty)
	if err != nil {
		return fmt.Errorf("attachment key %q: %w", key, err)
	}
	return gocty.FromCtyValue(converted, out)
}
