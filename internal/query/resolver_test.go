package query

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/store"
)

func testID(t *testing.T, token string) ident.Identifier {
	t.Helper()
	id, err := ident.Parse(token, ident.DefaultSeparators())
	require.NoError(t, err)
	return id
}

func newResolver(t *testing.T, tokens ...string) *Resolver {
	t.Helper()
	st := store.New(afero.NewMemMapFs(), "/work", store.DefaultLayout())
	for _, token := range tokens {
		err := st.Write(context.Background(), "report", testID(t, token), map[string]any{}, store.ModeReadOnly)
		require.NoError(t, err)
	}
	return New(st)
}

func keys(ids []ident.Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Key()
	}
	return out
}

func TestMatch_Literal(t *testing.T) {
	r := newResolver(t, "a/b~v1")
	seps := ident.DefaultSeparators()

	p, err := ident.ParsePattern("a/b~v1", seps)
	require.NoError(t, err)
	ids, err := r.Match(context.Background(), "report", p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b~v1"}, keys(ids))

	// A literal miss is an empty result, never a fallback.
	p, err = ident.ParsePattern("a/b", seps)
	require.NoError(t, err)
	ids, err = r.Match(context.Background(), "report", p)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMatch_Wildcards(t *testing.T) {
	r := newResolver(t, "a/x", "a/y~v1", "b/z", "b/z~v1")
	seps := ident.DefaultSeparators()

	testCases := []struct {
		pattern  string
		expected []string
	}{
		{pattern: ".", expected: []string{"a/x", "a/y~v1", "b/z", "b/z~v1"}},
		{pattern: "a*", expected: []string{"a/x", "a/y~v1"}},
		{pattern: "a*~v1", expected: []string{"a/y~v1"}},
		{pattern: "*~v1", expected: []string{"a/y~v1", "b/z~v1"}},
		{pattern: "nothing*", expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.pattern, func(t *testing.T) {
			p, err := ident.ParsePattern(tc.pattern, seps)
			require.NoError(t, err)
			ids, err := r.Match(context.Background(), "report", p)
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.expected, keys(ids))
		})
	}
}

func TestMatch_AllCoversAggregateOutputs(t *testing.T) {
	st := store.New(afero.NewMemMapFs(), "/work", store.DefaultLayout())
	ctx := context.Background()

	// Full aggregation writes its output under the empty index. The "."
	// pattern must return exactly what enumeration returns, that target
	// included.
	require.NoError(t, st.Write(ctx, "report", ident.Identifier{}, map[string]any{}, store.ModeReadOnly))
	require.NoError(t, st.Write(ctx, "report", testID(t, "a"), map[string]any{}, store.ModeReadOnly))
	r := New(st)

	existing, _, err := st.ListExisting(ctx, "report")
	require.NoError(t, err)
	require.Len(t, existing, 2)

	p, err := ident.ParsePattern(".", ident.DefaultSeparators())
	require.NoError(t, err)
	ids, err := r.Match(ctx, "report", p)
	require.NoError(t, err)
	assert.ElementsMatch(t, keys(existing), keys(ids))
	assert.Contains(t, keys(ids), "_")
}

func TestResolveInput_ExactHit(t *testing.T) {
	r := newResolver(t, "a~v1")

	resolved, found := r.ResolveInput(context.Background(), "report", testID(t, "a~v1"), true)
	require.True(t, found)
	assert.True(t, testID(t, "a~v1").Equal(resolved))
}

func TestResolveInput_BranchFallback(t *testing.T) {
	r := newResolver(t, "a")

	// With fallback the branched read degrades once to the branchless
	// target.
	resolved, found := r.ResolveInput(context.Background(), "report", testID(t, "a~v1"), true)
	require.True(t, found)
	assert.True(t, testID(t, "a").Equal(resolved))

	// Without fallback the same read misses.
	_, found = r.ResolveInput(context.Background(), "report", testID(t, "a~v1"), false)
	assert.False(t, found)
}

func TestResolveInput_ExactBeatsFallback(t *testing.T) {
	r := newResolver(t, "a", "a~v1")

	resolved, found := r.ResolveInput(context.Background(), "report", testID(t, "a~v1"), true)
	require.True(t, found)
	assert.True(t, testID(t, "a~v1").Equal(resolved))
}

func TestResolveInput_NoFallbackForBranchless(t *testing.T) {
	r := newResolver(t, "a~v1")

	// A branchless read never falls back to a branched target.
	_, found := r.ResolveInput(context.Background(), "report", testID(t, "a"), true)
	assert.False(t, found)
}
