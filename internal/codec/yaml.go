package codec

import (
	"path"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// YAML stores the artifact as a single YAML document.
type YAML struct {
	// Filename overrides the default "data.yaml".
	Filename string
}

func (y YAML) file() string {
	if y.Filename != "" {
		return y.Filename
	}
	return "data.yaml"
}

func (y YAML) Save(fs afero.Fs, dir string, value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path.Join(dir, y.file()), data, 0o644)
}

func (y YAML) Load(fs afero.Fs, dir string) (any, error) {
	data, err := afero.ReadFile(fs, path.Join(dir, y.file()))
	if err != nil {
		return nil, err
	}
	var value any
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func (y YAML) Primary() string { return y.file() }
