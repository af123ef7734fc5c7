package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/datamill-io/datamill/internal/ctxlog"
	"github.com/datamill-io/datamill/internal/ident"
)

// InvalidTarget records a leaf directory whose name could not be decoded
// back into an identifier. Collected for diagnostics, never fatal.
type InvalidTarget struct {
	Path string
	Err  error
}

// ListExisting scans the type's root recursively and decodes each leaf
// directory back into an Identifier. Leaves belonging to other types
// sharing the same root are skipped; malformed leaves are reported as
// invalid targets. The returned identifiers are in discovery order, with
// versioned duplicates collapsed.
func (s *Store) ListExisting(ctx context.Context, typeName string) ([]ident.Identifier, []InvalidTarget, error) {
	logger := ctxlog.FromContext(ctx)
	root := s.Root(typeName)

	if ok, err := afero.DirExists(s.fs, root); err != nil || !ok {
		return nil, nil, nil
	}

	var (
		ids     []ident.Identifier
		seen    = map[string]struct{}{}
		invalid []InvalidTarget
	)

	err := afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") && p != root {
			return filepath.SkipDir
		}
		leaf, err := s.isLeafDir(p)
		if err != nil {
			return err
		}
		if !leaf {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		name, id, _, decErr := s.layout.Decode(rel)
		if decErr != nil {
			logger.Debug("Skipping undecodable path.", "path", p, "error", decErr)
			invalid = append(invalid, InvalidTarget{Path: p, Err: decErr})
			return nil
		}
		if name != typeName {
			return nil
		}
		if _, dup := seen[id.Key()]; dup {
			return nil
		}
		seen[id.Key()] = struct{}{}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if len(invalid) > 0 {
		logger.Warn("Found invalid targets while scanning.", "root", root, "count", len(invalid))
	}
	return ids, invalid, nil
}

// isLeafDir reports whether dir holds files and no (non-hidden)
// subdirectories, i.e. looks like a stored target.
func (s *Store) isLeafDir(dir string) (bool, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return false, err
	}
	hasFile := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			return false, nil
		}
		hasFile = true
	}
	return hasFile, nil
}
