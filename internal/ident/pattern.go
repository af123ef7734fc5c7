package ident

import (
	"strings"
)

// PatternKind discriminates the recognized pattern shapes.
type PatternKind int

const (
	// Literal selects exactly one identifier.
	Literal PatternKind = iota
	// Prefix selects identifiers whose index text starts with a prefix
	// (trailing "*" in the token).
	Prefix
	// All selects every known identifier for the type in play (".").
	All
	// AnyIndex selects any index carrying one exact branch ("*~branch").
	AnyIndex
)

// Pattern is a parsed identifier selector.
type Pattern struct {
	Kind PatternKind

	// ID is the selected identifier for Literal patterns.
	ID Identifier

	// IndexPrefix is the index text before the wildcard for Prefix patterns.
	IndexPrefix string
	// Branch is the exact branch for Prefix (when given) and AnyIndex
	// patterns.
	Branch Branch
	// BranchGiven records whether the token carried an explicit branch
	// part. A Prefix pattern without one matches any branch.
	BranchGiven bool

	seps Separators
}

// ParsePattern parses an identifier selector token. Recognized forms:
//
//	"a/b~v1"  literal identifier
//	"a*"      index prefix, any branch
//	"a*~v1"   index prefix with exact branch
//	"*~v1"    any index with exact branch
//	"."       every known identifier
func ParsePattern(token string, seps Separators) (Pattern, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Pattern{}, &SyntaxError{Token: token, Reason: "empty pattern"}
	}
	if token == "." {
		return Pattern{Kind: All, seps: seps}, nil
	}

	indexPart := token
	branch := Branch("")
	branchGiven := false
	if i := strings.Index(token, seps.Branch); seps.Branch != "" && i >= 0 {
		indexPart = token[:i]
		tail := token[i+len(seps.Branch):]
		if strings.Contains(tail, seps.Branch) {
			return Pattern{}, &SyntaxError{Token: token, Reason: "multiple branch separators"}
		}
		if strings.Contains(tail, "*") {
			return Pattern{}, &SyntaxError{Token: token, Reason: "wildcard not allowed in branch"}
		}
		if tail != "" && !segmentRe.MatchString(tail) {
			return Pattern{}, &SyntaxError{Token: token, Reason: "invalid branch segment " + tail}
		}
		branch = Branch(tail)
		branchGiven = true
	}

	if indexPart == "*" {
		if !branchGiven {
			return Pattern{}, &SyntaxError{Token: token, Reason: "bare '*' requires a branch part"}
		}
		return Pattern{Kind: AnyIndex, Branch: branch, BranchGiven: true, seps: seps}, nil
	}

	if strings.HasSuffix(indexPart, "*") {
		prefix := strings.TrimSuffix(indexPart, "*")
		if strings.Contains(prefix, "*") {
			return Pattern{}, &SyntaxError{Token: token, Reason: "wildcard only allowed at the end of the index"}
		}
		return Pattern{
			Kind:        Prefix,
			IndexPrefix: prefix,
			Branch:      branch,
			BranchGiven: branchGiven,
			seps:        seps,
		}, nil
	}

	if strings.Contains(indexPart, "*") {
		return Pattern{}, &SyntaxError{Token: token, Reason: "wildcard only allowed at the end of the index"}
	}

	index, err := parseIndex(indexPart, seps)
	if err != nil {
		return Pattern{}, &SyntaxError{Token: token, Reason: err.Error()}
	}
	return Pattern{
		Kind: Literal,
		ID:   Identifier{Index: index, Branch: branch},
		seps: seps,
	}, nil
}

// String renders the pattern back to its token form.
func (p Pattern) String() string {
	seps := p.seps
	if seps.Branch == "" {
		seps = DefaultSeparators()
	}
	switch p.Kind {
	case All:
		return "."
	case AnyIndex:
		return "*" + seps.Branch + string(p.Branch)
	case Prefix:
		out := p.IndexPrefix + "*"
		if p.BranchGiven {
			out += seps.Branch + string(p.Branch)
		}
		return out
	}
	return p.ID.Format(seps)
}

// Matches reports whether the pattern selects id. Literal patterns match
// on structural equality; the other kinds filter over enumerated
// identifiers.
func (p Pattern) Matches(id Identifier) bool {
	switch p.Kind {
	case Literal:
		return p.ID.Equal(id)
	case All:
		// Every enumerated identifier, including the empty-index outputs
		// produced by full aggregation.
		return true
	case AnyIndex:
		return id.Branch == p.Branch
	case Prefix:
		if p.BranchGiven && id.Branch != p.Branch {
			return false
		}
		seps := p.seps
		if seps.Primary == "" {
			seps = DefaultSeparators()
		}
		text := strings.Join(id.Index, seps.Primary)
		return strings.HasPrefix(text, p.IndexPrefix)
	}
	return false
}
