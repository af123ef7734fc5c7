// Package ident defines the identifier model: indices, branches and the
// (index, branch) pair addressing one stored dataset instance, together
// with the separator grammar used to parse and format identifier tokens.
package ident

import (
	"fmt"
	"regexp"
	"strings"
)

// segmentRe restricts index and branch segments to the character set the
// storage layout can round-trip through a directory name.
var segmentRe = regexp.MustCompile(`^[a-zA-Z0-9+\-_:()]+$`)

// Index is the ordered sequence of path-like segments naming a logical
// subject. An empty Index is the "no index" value produced by full
// aggregation; it is never parsed from user input.
type Index []string

// Branch is an optional variant tag. The empty string is the distinct
// "no branch" value, not equivalent to any named branch.
type Branch string

// None reports whether b is the "no branch" value.
func (b Branch) None() bool { return b == "" }

// Identifier is the (Index, Branch) pair. Equality is structural.
type Identifier struct {
	Index  Index
	Branch Branch
}

// Separators configures the identifier token grammar and the storage
// layout boundaries.
type Separators struct {
	// Primary joins index segments in identifier tokens.
	Primary string
	// Secondary joins index segments on disk (directory levels).
	Secondary string
	// Index optionally sits between the index part and the target name in
	// a leaf directory name. Empty means the name starts the leaf directly.
	Index string
	// Branch separates the target name (or index) from the branch tag.
	Branch string
}

// DefaultSeparators returns the conventional grammar: "/" between index
// segments, directory nesting on disk, no index/name separator, "~" before
// the branch.
func DefaultSeparators() Separators {
	return Separators{Primary: "/", Secondary: "/", Index: "", Branch: "~"}
}

// SyntaxError reports a malformed identifier or pattern token.
type SyntaxError struct {
	Token  string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid identifier syntax %q: %s", e.Token, e.Reason)
}

// Parse decodes a textual identifier token into an Identifier using the
// separator grammar. "a/b~v2" yields index [a b] and branch "v2"; a
// trailing branch separator ("a~") is an explicit "no branch".
func Parse(token string, seps Separators) (Identifier, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identifier{}, &SyntaxError{Token: token, Reason: "empty token"}
	}

	indexPart := token
	branch := Branch("")
	if i := strings.Index(token, seps.Branch); seps.Branch != "" && i >= 0 {
		indexPart = token[:i]
		tail := token[i+len(seps.Branch):]
		if strings.Contains(tail, seps.Branch) {
			return Identifier{}, &SyntaxError{Token: token, Reason: "multiple branch separators"}
		}
		if tail != "" && !segmentRe.MatchString(tail) {
			return Identifier{}, &SyntaxError{Token: token, Reason: fmt.Sprintf("invalid branch segment %q", tail)}
		}
		branch = Branch(tail)
	}

	index, err := parseIndex(indexPart, seps)
	if err != nil {
		return Identifier{}, &SyntaxError{Token: token, Reason: err.Error()}
	}
	return Identifier{Index: index, Branch: branch}, nil
}

func parseIndex(s string, seps Separators) (Index, error) {
	if s == "" {
		return nil, fmt.Errorf("empty index")
	}
	var segs []string
	for _, seg := range strings.Split(s, seps.Primary) {
		if seg == "" {
			return nil, fmt.Errorf("empty index segment")
		}
		if seg == "_" {
			// Reserved: "_" stands in for the empty index on disk, so a
			// literal "_" segment would collide with it.
			return nil, fmt.Errorf("reserved index segment %q", seg)
		}
		if !segmentRe.MatchString(seg) {
			return nil, fmt.Errorf("invalid index segment %q", seg)
		}
		segs = append(segs, seg)
	}
	return Index(segs), nil
}

// String formats the identifier with the default separators.
func (id Identifier) String() string {
	return id.Format(DefaultSeparators())
}

// Format renders the identifier as a token under the given grammar. The
// branch separator is always emitted when a branch is present; an empty
// index renders as "_" (the aggregation placeholder).
func (id Identifier) Format(seps Separators) string {
	var sb strings.Builder
	if len(id.Index) == 0 {
		sb.WriteString("_")
	} else {
		sb.WriteString(strings.Join(id.Index, seps.Primary))
	}
	if !id.Branch.None() {
		sb.WriteString(seps.Branch)
		sb.WriteString(string(id.Branch))
	}
	return sb.String()
}

// Equal reports structural equality.
func (id Identifier) Equal(other Identifier) bool {
	if id.Branch != other.Branch || len(id.Index) != len(other.Index) {
		return false
	}
	for i := range id.Index {
		if id.Index[i] != other.Index[i] {
			return false
		}
	}
	return true
}

// WithoutBranch returns the branchless identifier with the same index.
func (id Identifier) WithoutBranch() Identifier {
	return Identifier{Index: id.Index, Branch: ""}
}

// Key returns a canonical string usable as a map key.
func (id Identifier) Key() string {
	return id.Format(DefaultSeparators())
}

// Compare orders identifiers lexicographically by index segments, then by
// branch; "no branch" sorts before any named branch.
func Compare(a, b Identifier) int {
	n := len(a.Index)
	if len(b.Index) > n {
		n = len(b.Index)
	}
	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(a.Index) {
			sa = a.Index[i]
		}
		if i < len(b.Index) {
			sb = b.Index[i]
		}
		if sa != sb {
			if sa < sb {
				return -1
			}
			return 1
		}
	}
	switch {
	case a.Branch == b.Branch:
		return 0
	case a.Branch.None():
		return -1
	case b.Branch.None():
		return 1
	case a.Branch < b.Branch:
		return -1
	default:
		return 1
	}
}
