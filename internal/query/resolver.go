// Package query turns identifier patterns into the concrete set of
// matching existing identifiers and performs branch-fallback lookups for
// single-identifier reads.
package query

import (
	"context"

	"github.com/datamill-io/datamill/internal/ctxlog"
	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/store"
)

// Resolver answers identifier queries against a store.
type Resolver struct {
	store *store.Store
}

// New creates a Resolver over st.
func New(st *store.Store) *Resolver {
	return &Resolver{store: st}
}

// Store exposes the underlying store.
func (r *Resolver) Store() *store.Store { return r.store }

// Match returns the existing identifiers of typeName selected by p, in
// discovery order. An empty result is valid. A literal pattern matches iff
// the exact identifier exists.
func (r *Resolver) Match(ctx context.Context, typeName string, p ident.Pattern) ([]ident.Identifier, error) {
	if p.Kind == ident.Literal {
		if r.store.Exists(typeName, p.ID) {
			return []ident.Identifier{p.ID}, nil
		}
		return nil, nil
	}

	existing, _, err := r.store.ListExisting(ctx, typeName)
	if err != nil {
		return nil, err
	}
	var matches []ident.Identifier
	for _, id := range existing {
		if p.Matches(id) {
			matches = append(matches, id)
		}
	}
	return matches, nil
}

// ResolveInput finds the stored identifier satisfying a read of
// (typeName, id). On a miss with fallback enabled and a branch present,
// it degrades once to the branchless identifier; fallback never chains
// further. The boolean reports whether anything was found.
func (r *Resolver) ResolveInput(ctx context.Context, typeName string, id ident.Identifier, fallback bool) (ident.Identifier, bool) {
	if r.store.Exists(typeName, id) {
		return id, true
	}
	if fallback && !id.Branch.None() {
		branchless := id.WithoutBranch()
		if r.store.Exists(typeName, branchless) {
			ctxlog.FromContext(ctx).Debug("Branch fallback hit.",
				"type", typeName, "identifier", id.String(), "resolved", branchless.String())
			return branchless, true
		}
	}
	return ident.Identifier{}, false
}
