package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/datamill-io/datamill/internal/codec"
	"github.com/datamill-io/datamill/internal/ctxlog"
	"github.com/datamill-io/datamill/internal/ident"
)

var (
	// ErrNotFound reports a read against a target that does not exist.
	ErrNotFound = errors.New("target does not exist")
	// ErrExists reports a read-only write against an existing target.
	ErrExists = errors.New("target already exists")
	// ErrLocked reports a write or removal against a locked target type.
	ErrLocked = errors.New("target type is locked")
	// ErrUnknownType reports an operation against an unregistered type.
	ErrUnknownType = errors.New("unknown target type")
)

// WriteMode controls how a write treats an existing target.
type WriteMode int

const (
	// ModeReadOnly refuses to replace an existing target.
	ModeReadOnly WriteMode = iota
	// ModeOverwrite replaces the existing target in place.
	ModeOverwrite
)

// Store resolves target types and identifiers to filesystem locations and
// moves artifact values in and out through each type's codec.
type Store struct {
	fs      afero.Fs
	workdir string
	layout  Layout

	dirs         map[string]string
	codecs       map[string]codec.Codec
	defaultCodec codec.Codec
	locked       map[string]struct{}

	now func() time.Time
}

// Option customizes a Store at construction time.
type Option func(*Store)

// WithTargetDir routes one target type to a dedicated root directory.
func WithTargetDir(typeName, dir string) Option {
	return func(s *Store) { s.dirs[typeName] = dir }
}

// WithCodec registers the codec for a target type.
func WithCodec(typeName string, c codec.Codec) Option {
	return func(s *Store) { s.codecs[typeName] = c }
}

// WithDefaultCodec replaces the fallback codec (JSON by default).
func WithDefaultCodec(c codec.Codec) Option {
	return func(s *Store) { s.defaultCodec = c }
}

// WithLock marks a target type read-only.
func WithLock(typeName string) Option {
	return func(s *Store) { s.locked[typeName] = struct{}{} }
}

// WithClock overrides the time source used for date versioning.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store rooted at workdir on fs.
func New(fs afero.Fs, workdir string, layout Layout, opts ...Option) *Store {
	s := &Store{
		fs:           fs,
		workdir:      workdir,
		layout:       layout,
		dirs:         map[string]string{},
		codecs:       map[string]codec.Codec{},
		defaultCodec: codec.JSON{},
		locked:       map[string]struct{}{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Layout exposes the active path layout.
func (s *Store) Layout() Layout { return s.layout }

// Root returns the storage root for a target type: its dedicated target
// directory when one was configured, the shared work directory otherwise.
func (s *Store) Root(typeName string) string {
	if dir, ok := s.dirs[typeName]; ok {
		return dir
	}
	return s.workdir
}

// Codec returns the codec serving a target type.
func (s *Store) Codec(typeName string) codec.Codec {
	if c, ok := s.codecs[typeName]; ok {
		return c
	}
	return s.defaultCodec
}

// Locked reports whether a target type refuses writes and removals.
func (s *Store) Locked(typeName string) bool {
	_, ok := s.locked[typeName]
	return ok
}

// PathFor resolves the storage path of an existing or prospective target.
// Under versioning it resolves to the latest existing version, or the
// unsuffixed base when none exists yet.
func (s *Store) PathFor(typeName string, id ident.Identifier) string {
	base := path.Join(s.Root(typeName), s.layout.RelPath(typeName, id))
	if s.layout.Versioning == VersionNone {
		return base
	}
	if latest := s.latestVersion(base); latest != "" {
		return base + versionSuffix(latest)
	}
	return base
}

// Location is the diagnostics name for PathFor.
func (s *Store) Location(typeName string, id ident.Identifier) string {
	return s.PathFor(typeName, id)
}

// Exists reports whether the target's path is present and its codec can
// locate the primary artifact file inside it.
func (s *Store) Exists(typeName string, id ident.Identifier) bool {
	dir := s.PathFor(typeName, id)
	if ok, err := afero.DirExists(s.fs, dir); err != nil || !ok {
		return false
	}
	primary := s.Codec(typeName).Primary()
	if primary == "" {
		return true
	}
	ok, err := afero.Exists(s.fs, path.Join(dir, primary))
	return err == nil && ok
}

// Read loads the target's artifact value.
func (s *Store) Read(ctx context.Context, typeName string, id ident.Identifier) (any, error) {
	if !s.Exists(typeName, id) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, typeName, id)
	}
	dir := s.PathFor(typeName, id)
	ctxlog.FromContext(ctx).Debug("Reading target.", "type", typeName, "identifier", id.String(), "path", dir)
	return s.Codec(typeName).Load(s.fs, dir)
}

// Write persists the artifact value for a target. Under read-only mode an
// existing target is an error; under versioning a fresh version path is
// allocated unless overwriting, in which case the latest version is
// replaced in place.
func (s *Store) Write(ctx context.Context, typeName string, id ident.Identifier, value any, mode WriteMode) error {
	if s.Locked(typeName) {
		return fmt.Errorf("%w: %s", ErrLocked, typeName)
	}

	// Versioned types keep history: a read-only write of an existing target
	// allocates the next version instead of failing.
	exists := s.Exists(typeName, id)
	if exists && mode == ModeReadOnly && s.layout.Versioning == VersionNone {
		return fmt.Errorf("%w: %s %s", ErrExists, typeName, id)
	}

	base := path.Join(s.Root(typeName), s.layout.RelPath(typeName, id))
	dir := base
	if s.layout.Versioning != VersionNone {
		latest := s.latestVersion(base)
		if exists && mode == ModeOverwrite {
			dir = base + versionSuffix(latest)
		} else {
			dir = base + versionSuffix(s.layout.Versioning.next(latest, s.now))
		}
	}

	if exists {
		if err := s.fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("replacing target %s %s: %w", typeName, id, err)
		}
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating target directory %s: %w", dir, err)
	}

	ctxlog.FromContext(ctx).Info("Writing target.", "type", typeName, "identifier", id.String(), "path", dir)
	if err := s.Codec(typeName).Save(s.fs, dir, value); err != nil {
		return fmt.Errorf("saving target %s %s: %w", typeName, id, err)
	}
	return nil
}

// Remove deletes the target's data and prunes empty parent directories up
// to the type's root.
func (s *Store) Remove(ctx context.Context, typeName string, id ident.Identifier) error {
	if s.Locked(typeName) {
		return fmt.Errorf("%w: %s", ErrLocked, typeName)
	}
	if !s.Exists(typeName, id) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, typeName, id)
	}
	dir := s.PathFor(typeName, id)
	ctxlog.FromContext(ctx).Info("Removing target.", "type", typeName, "identifier", id.String(), "path", dir)
	if err := s.fs.RemoveAll(dir); err != nil {
		return err
	}
	s.pruneEmptyDirs(path.Dir(dir), s.Root(typeName))
	return nil
}

func (s *Store) pruneEmptyDirs(dir, root string) {
	for dir != root && strings.HasPrefix(dir, root) {
		entries, err := afero.ReadDir(s.fs, dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := s.fs.Remove(dir); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

// latestVersion returns the newest valid version token among the sibling
// directories of base, or "" when none exist.
func (s *Store) latestVersion(base string) string {
	parent := path.Dir(base)
	leaf := path.Base(base)
	entries, err := afero.ReadDir(s.fs, parent)
	if err != nil {
		return ""
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), leaf+versionMarker) {
			continue
		}
		token := strings.TrimPrefix(entry.Name(), leaf+versionMarker)
		if s.layout.Versioning.validVersion(token) {
			versions = append(versions, token)
		}
	}
	if len(versions) == 0 {
		return ""
	}
	sort.Slice(versions, func(i, j int) bool {
		return s.layout.Versioning.less(versions[i], versions[j])
	})
	return versions[len(versions)-1]
}
