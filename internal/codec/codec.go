// Package codec defines the artifact load/save contract applied to a
// target's storage directory, and the codecs shipped with the engine.
// A codec owns the files inside one leaf directory; the directory itself
// is managed by the store.
package codec

import (
	"fmt"

	"github.com/spf13/afero"
)

// Codec persists one artifact value into a directory and restores it.
type Codec interface {
	// Save writes value into dir. The directory exists and is empty (or
	// being overwritten) when called.
	Save(fs afero.Fs, dir string, value any) error
	// Load restores the value previously saved into dir.
	Load(fs afero.Fs, dir string) (any, error)
	// Primary returns the file name whose presence marks the artifact as
	// existing.
	Primary() string
}

// Chain composes codecs over the same directory. Values must be
// map[string]any: Save hands the whole map to every codec, Load merges
// each codec's map into one.
type Chain []Codec

// Save writes value through every codec in order.
func (c Chain) Save(fs afero.Fs, dir string, value any) error {
	m, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("chained codec requires map[string]any, got %T", value)
	}
	for _, sub := range c {
		if err := sub.Save(fs, dir, m); err != nil {
			return err
		}
	}
	return nil
}

// Load merges the maps produced by every codec in order; later codecs win
// on key collisions.
func (c Chain) Load(fs afero.Fs, dir string) (any, error) {
	merged := map[string]any{}
	for _, sub := range c {
		v, err := sub.Load(fs, dir)
		if err != nil {
			return nil, err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("chained codec requires map[string]any, got %T", v)
		}
		for k, val := range m {
			merged[k] = val
		}
	}
	return merged, nil
}

// Primary is the first codec's primary file.
func (c Chain) Primary() string {
	if len(c) == 0 {
		return ""
	}
	return c[0].Primary()
}
