package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/machine"
)

func call(inputs map[string][]machine.InputValue) *machine.Call {
	return &machine.Call{Inputs: inputs}
}

func value(t *testing.T, token string, data any) machine.InputValue {
	t.Helper()
	id, err := ident.Parse(token, ident.DefaultSeparators())
	require.NoError(t, err)
	return machine.InputValue{ID: id, Data: data}
}

func TestRegister(t *testing.T) {
	reg := machine.NewRegistry()
	(&Module{}).Register(reg)

	handlers := reg.Handlers()
	for _, name := range []string{"passthrough", "collect", "merge_maps"} {
		assert.Contains(t, handlers, name)
	}
}

func TestOnPassthrough(t *testing.T) {
	out, err := OnPassthrough(context.Background(), call(map[string][]machine.InputValue{
		"in": {value(t, "a", map[string]any{"k": "v"})},
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, out)
}

func TestOnPassthrough_RejectsMultipleValues(t *testing.T) {
	_, err := OnPassthrough(context.Background(), call(map[string][]machine.InputValue{
		"in": {value(t, "a", 1), value(t, "b", 2)},
	}))
	assert.Error(t, err)
}

func TestOnCollect(t *testing.T) {
	absent := value(t, "c", nil)
	absent.Absent = true

	out, err := OnCollect(context.Background(), call(map[string][]machine.InputValue{
		"in": {value(t, "a", 1), value(t, "b~v1", 2), absent},
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b~v1": 2}, out)
}

func TestOnMergeMaps(t *testing.T) {
	out, err := OnMergeMaps(context.Background(), call(map[string][]machine.InputValue{
		"base":    {value(t, "a", map[string]any{"x": 1, "y": 1})},
		"overlay": {value(t, "b", map[string]any{"y": 2})},
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1, "y": 2}, out)
}

func TestOnMergeMaps_RejectsNonMap(t *testing.T) {
	_, err := OnMergeMaps(context.Background(), call(map[string][]machine.InputValue{
		"base": {value(t, "a", "not a map")},
	}))
	assert.Error(t, err)
}
