package codec

import (
	"encoding/json"
	"path"

	"github.com/spf13/afero"
)

// JSON stores the artifact as a single JSON document.
type JSON struct {
	// Filename overrides the default "data.json".
	Filename string
}

func (j JSON) file() string {
	if j.Filename != "" {
		return j.Filename
	}
	return "data.json"
}

func (j JSON) Save(fs afero.Fs, dir string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path.Join(dir, j.file()), data, 0o644)
}

func (j JSON) Load(fs afero.Fs, dir string) (any, error) {
	data, err := afero.ReadFile(fs, path.Join(dir, j.file()))
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func (j JSON) Primary() string { return j.file() }
