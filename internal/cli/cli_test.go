package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func parse(t *testing.T, args ...string) (*Invocation, bool, error) {
	t.Helper()
	var buf bytes.Buffer
	return Parse(args, &buf)
}

func TestParse_RunInvocation(t *testing.T) {
	inv, exit, err := parse(t,
		"-config", "datamill.hcl",
		"-workdir", "/data",
		"-dry-run",
		"-overwrite",
		"-no-fallback",
		"-param", "limit=5",
		"-param", "label=x",
		"-input", "extra=report",
		"summarize", "a/b~v1",
	)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, ModeRun, inv.Mode)
	assert.Equal(t, "datamill.hcl", inv.App.ConfigPath)
	assert.Equal(t, "/data", inv.App.Workdir)
	assert.Equal(t, "summarize", inv.Request.Machine)
	assert.Equal(t, "a/b~v1", inv.Request.Pattern)
	assert.True(t, inv.Request.DryRun)
	assert.True(t, inv.Request.Overwrite)
	assert.True(t, inv.Request.NoFallback)
	assert.Equal(t, map[string]string{"extra": "report"}, inv.Request.Overrides)
	assert.Equal(t, cty.StringVal("5"), inv.Request.Params["limit"])
	assert.Equal(t, cty.StringVal("x"), inv.Request.Params["label"])
}

func TestParse_Defaults(t *testing.T) {
	inv, exit, err := parse(t, "copy", ".")
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "text", inv.App.LogFormat)
	assert.Equal(t, "info", inv.App.LogLevel)
	assert.False(t, inv.Request.DryRun)
	assert.Nil(t, inv.Request.Params)
}

func TestParse_NoArgsPrintsUsage(t *testing.T) {
	var buf bytes.Buffer
	inv, exit, err := Parse(nil, &buf)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, inv)
	assert.Contains(t, buf.String(), "Usage:")
}

func TestParse_DiagnosticModes(t *testing.T) {
	inv, exit, err := parse(t, "-list", "report")
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, ModeList, inv.Mode)
	assert.Equal(t, "report", inv.Type)

	inv, _, err = parse(t, "-location", "report", "a/b")
	require.NoError(t, err)
	assert.Equal(t, ModeLocation, inv.Mode)
	assert.Equal(t, "a/b", inv.Request.Pattern)

	inv, _, err = parse(t, "-remove", "report", "a/b")
	require.NoError(t, err)
	assert.Equal(t, ModeRemove, inv.Mode)

	_, _, err = parse(t, "-remove", "report")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParse_Validation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "bad log format", args: []string{"-log-format", "xml", "copy", "."}},
		{name: "bad log level", args: []string{"-log-level", "loud", "copy", "."}},
		{name: "bad param shape", args: []string{"-param", "novalue", "copy", "."}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parse(t, tc.args...)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
