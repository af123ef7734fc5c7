package store

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datamill-io/datamill/internal/ident"
)

func writeTarget(t *testing.T, st *Store, typeName, token string) {
	t.Helper()
	require.NoError(t, st.Write(context.Background(), typeName, testID(t, token), map[string]any{}, ModeReadOnly))
}

func keys(ids []ident.Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Key()
	}
	return out
}

func TestListExisting(t *testing.T) {
	st := newTestStore(t)
	writeTarget(t, st, "report", "a")
	writeTarget(t, st, "report", "a/b~v1")
	writeTarget(t, st, "report", "c/d")
	writeTarget(t, st, "summary", "a") // other type, same root

	ids, invalid, err := st.ListExisting(context.Background(), "report")
	require.NoError(t, err)
	assert.Empty(t, invalid)
	assert.ElementsMatch(t, []string{"a", "a/b~v1", "c/d"}, keys(ids))
}

func TestListExisting_MissingRoot(t *testing.T) {
	st := newTestStore(t)

	ids, invalid, err := st.ListExisting(context.Background(), "report")
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, invalid)
}

func TestListExisting_CollectsInvalidTargets(t *testing.T) {
	st := newTestStore(t)
	writeTarget(t, st, "report", "a")

	// A leaf directory whose name cannot decode back into an identifier.
	require.NoError(t, st.fs.MkdirAll("/work/x/bad name", 0o755))
	require.NoError(t, afero.WriteFile(st.fs, "/work/x/bad name/data.json", []byte("{}"), 0o644))

	ids, invalid, err := st.ListExisting(context.Background(), "report")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a"}, keys(ids))
	require.Len(t, invalid, 1)
	assert.Contains(t, invalid[0].Path, "bad name")
	assert.Error(t, invalid[0].Err)
}

func TestListExisting_SkipsHiddenDirs(t *testing.T) {
	st := newTestStore(t)
	writeTarget(t, st, "report", "a")

	require.NoError(t, st.fs.MkdirAll("/work/.git/report", 0o755))
	require.NoError(t, afero.WriteFile(st.fs, "/work/.git/report/data.json", []byte("{}"), 0o644))

	ids, invalid, err := st.ListExisting(context.Background(), "report")
	require.NoError(t, err)
	assert.Empty(t, invalid)
	assert.ElementsMatch(t, []string{"a"}, keys(ids))
}

func TestListExisting_CollapsesVersions(t *testing.T) {
	ctx := context.Background()
	layout := Layout{Seps: ident.DefaultSeparators(), Versioning: VersionInt}
	st := New(afero.NewMemMapFs(), "/work", layout)

	require.NoError(t, st.Write(ctx, "report", testID(t, "a"), map[string]any{"v": "1"}, ModeReadOnly))
	require.NoError(t, st.Write(ctx, "report", testID(t, "a"), map[string]any{"v": "2"}, ModeReadOnly))

	ids, invalid, err := st.ListExisting(ctx, "report")
	require.NoError(t, err)
	assert.Empty(t, invalid)
	assert.ElementsMatch(t, []string{"a"}, keys(ids))
}
