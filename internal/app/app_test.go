package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/machine"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/machines/builtin"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datamill.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const testConfig = `
workdir = "/work"

machine "promote" {
  input "in" {
    type = "draft"
  }
  output  = "published"
  handler = "passthrough"
}

machine "bundle" {
  input "in" {
    type = "published"
  }
  output    = "bundle"
  aggregate = "all"
  handler   = "collect"
}
`

func newTestApp(t *testing.T) (*App, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	a, err := New(io.Discard, &Config{
		ConfigPath: writeConfig(t, testConfig),
		LogLevel:   "error",
	}, fs, &builtin.Module{})
	require.NoError(t, err)
	return a, fs
}

func seed(t *testing.T, a *App, typeName, token string, value map[string]any) {
	t.Helper()
	id, err := ident.Parse(token, ident.DefaultSeparators())
	require.NoError(t, err)
	require.NoError(t, a.Store().Write(context.Background(), typeName, id, value, store.ModeReadOnly))
}

func TestApp_RunLiteral(t *testing.T) {
	a, _ := newTestApp(t)
	seed(t, a, "draft", "post/1", map[string]any{"title": "hello"})

	summaries, err := a.Run(context.Background(), Request{Machine: "promote", Pattern: "post/1"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "done", summaries[0].Status)
	assert.Equal(t, "post/1", summaries[0].Identifier)

	id, err := ident.Parse("post/1", ident.DefaultSeparators())
	require.NoError(t, err)
	loaded, err := a.Store().Read(context.Background(), "published", id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "hello"}, loaded)
}

func TestApp_RunWildcardAggregate(t *testing.T) {
	a, _ := newTestApp(t)
	seed(t, a, "draft", "post/1", map[string]any{"n": "1"})
	seed(t, a, "draft", "post/2", map[string]any{"n": "2"})

	summaries, err := a.Run(context.Background(), Request{Machine: "promote", Pattern: "post*"})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	summaries, err = a.Run(context.Background(), Request{Machine: "bundle", Pattern: "."})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "done", summaries[0].Status)
	assert.Equal(t, "_", summaries[0].Identifier)

	loaded, err := a.Store().Read(context.Background(), "bundle", ident.Identifier{})
	require.NoError(t, err)
	bundle, ok := loaded.(map[string]any)
	require.True(t, ok)
	assert.Len(t, bundle, 2)
}

func TestApp_RunDryRun(t *testing.T) {
	a, _ := newTestApp(t)
	seed(t, a, "draft", "post/1", map[string]any{})

	summaries, err := a.Run(context.Background(), Request{
		Machine: "promote", Pattern: "post/1", DryRun: true,
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "runnable", summaries[0].Status)

	id, err := ident.Parse("post/1", ident.DefaultSeparators())
	require.NoError(t, err)
	assert.False(t, a.Store().Exists("published", id))
}

func TestApp_RunReportsMissingInputs(t *testing.T) {
	a, _ := newTestApp(t)

	summaries, err := a.Run(context.Background(), Request{Machine: "promote", Pattern: "post/1"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "pending", summaries[0].Status)
	assert.Equal(t, []string{"in"}, summaries[0].Missing)
}

func TestApp_RunBadPattern(t *testing.T) {
	a, _ := newTestApp(t)

	_, err := a.Run(context.Background(), Request{Machine: "promote", Pattern: "a*b"})
	assert.Error(t, err)
}

func TestApp_Diagnostics(t *testing.T) {
	a, _ := newTestApp(t)
	seed(t, a, "draft", "post/1", map[string]any{})
	seed(t, a, "draft", "post/2~v1", map[string]any{})

	ids, invalid, err := a.ListTargets(context.Background(), "draft")
	require.NoError(t, err)
	assert.Empty(t, invalid)
	assert.Len(t, ids, 2)

	loc, err := a.Location("draft", "post/1")
	require.NoError(t, err)
	assert.Equal(t, "/work/post/1/draft", loc)

	require.NoError(t, a.Remove(context.Background(), "draft", "post/1"))
	ids, _, err = a.ListTargets(context.Background(), "draft")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestApp_Machines(t *testing.T) {
	a, _ := newTestApp(t)
	assert.Equal(t, []string{"bundle", "promote"}, a.Machines())
}

func TestApp_UnknownHandlerFailsStartup(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := New(io.Discard, &Config{
		ConfigPath: writeConfig(t, `
machine "x" {
  output  = "dst"
  handler = "nope"
}
`),
		LogLevel: "error",
	}, fs, &builtin.Module{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown handler")
}

var _ machine.Module = (*builtin.Module)(nil)
