// Package store maps (target type, identifier) pairs to filesystem
// locations under a configured root and performs all artifact I/O through
// the type's codec. It is the only component that touches the disk.
package store

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/datamill-io/datamill/internal/ident"
)

// noIndexDir is the directory component standing in for an empty index.
const noIndexDir = "_"

// versionMarker introduces the optional version suffix on a leaf name.
const versionMarker = "_v"

var nameRe = regexp.MustCompile(`^[\w+\-]+$`)

// Layout renders identifiers into relative storage paths and decodes them
// back. Two shapes are supported, selected by the Index separator: with an
// empty Index separator the index segments become nested directories and
// the leaf starts with the target name; with a non-empty one the whole
// target is a single leaf component ("a.b#name~br").
type Layout struct {
	Seps       ident.Separators
	Versioning VersionMode
}

// DefaultLayout is the nested directory layout without versioning.
func DefaultLayout() Layout {
	return Layout{Seps: ident.DefaultSeparators(), Versioning: VersionNone}
}

// LeafBase renders the unversioned leaf component for a target.
func (l Layout) LeafBase(typeName string, id ident.Identifier) string {
	leaf := typeName
	if !id.Branch.None() {
		leaf += l.Seps.Branch + string(id.Branch)
	}
	return leaf
}

// RelPath renders the relative, unversioned path for a target.
func (l Layout) RelPath(typeName string, id ident.Identifier) string {
	indexText := noIndexDir
	if len(id.Index) > 0 {
		indexText = strings.Join(id.Index, l.Seps.Secondary)
	}
	leaf := l.LeafBase(typeName, id)
	if l.Seps.Index != "" {
		return indexText + l.Seps.Index + leaf
	}
	return path.Join(indexText, leaf)
}

// Decode parses a relative storage path back into its target type name,
// identifier and version token (empty when unversioned).
func (l Layout) Decode(rel string) (typeName string, id ident.Identifier, version string, err error) {
	rel = path.Clean(rel)
	if rel == "." || rel == "" {
		return "", ident.Identifier{}, "", fmt.Errorf("empty path")
	}

	dir, leaf := path.Split(rel)
	dir = strings.Trim(dir, "/")

	var indexText string
	if l.Seps.Index != "" {
		i := strings.Index(leaf, l.Seps.Index)
		if i < 0 {
			return "", ident.Identifier{}, "", fmt.Errorf("missing index separator %q in %q", l.Seps.Index, rel)
		}
		indexText = leaf[:i]
		if dir != "" {
			indexText = dir + l.Seps.Secondary + indexText
		}
		leaf = leaf[i+len(l.Seps.Index):]
	} else {
		indexText = dir
	}

	if l.Versioning != VersionNone {
		base, token := splitVersion(leaf)
		if token != "" && l.Versioning.validVersion(token) {
			leaf, version = base, token
		}
	}

	branch := ident.Branch("")
	if i := strings.Index(leaf, l.Seps.Branch); l.Seps.Branch != "" && i >= 0 {
		tail := leaf[i+len(l.Seps.Branch):]
		if tail == "" || strings.Contains(tail, l.Seps.Branch) {
			return "", ident.Identifier{}, "", fmt.Errorf("malformed branch in leaf %q", rel)
		}
		branch = ident.Branch(tail)
		leaf = leaf[:i]
	}

	if !nameRe.MatchString(leaf) {
		return "", ident.Identifier{}, "", fmt.Errorf("invalid target name %q", leaf)
	}
	typeName = leaf

	var index ident.Index
	if indexText != noIndexDir && indexText != "" {
		joiner := l.Seps.Secondary
		if joiner == "" {
			joiner = "/"
		}
		for _, seg := range strings.Split(indexText, joiner) {
			if seg == "" {
				return "", ident.Identifier{}, "", fmt.Errorf("empty index segment in %q", rel)
			}
			index = append(index, seg)
		}
	}

	id = ident.Identifier{Index: index, Branch: branch}

	// Round-trip check: the relative path must be a deterministic function
	// of (type, identifier).
	if l.RelPath(typeName, id) != strings.TrimSuffix(rel, versionSuffix(version)) {
		return "", ident.Identifier{}, "", fmt.Errorf("path %q does not round-trip", rel)
	}
	return typeName, id, version, nil
}

func splitVersion(leaf string) (base, version string) {
	i := strings.LastIndex(leaf, versionMarker)
	if i <= 0 {
		return leaf, ""
	}
	return leaf[:i], leaf[i+len(versionMarker):]
}

func versionSuffix(version string) string {
	if version == "" {
		return ""
	}
	return versionMarker + version
}
