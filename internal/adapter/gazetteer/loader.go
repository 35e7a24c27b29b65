// internal/adapter/gazetteer/loader.go

package gazetteer

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"civicpulse/internal/domain/geo"
)

//go:embed data/cameroon.yaml
var defaultData embed.FS

// file is the on-disk layout of a gazetteer
type file struct {
	Localities []geo.LocationEntry `yaml:"localities"`
}

// Parse decodes a YAML gazetteer document
func Parse(data []byte) (*geo.MemoryGazetteer, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error decoding gazetteer: %w", err)
	}
	if len(f.Localities) == 0 {
		return nil, fmt.Errorf("gazetteer has no localities")
	}

	for i, e := range f.Localities {
		switch e.Metadata.Setting {
		case "", geo.SettingUrban, geo.SettingRural:
		default:
			return nil, fmt.Errorf("locality %d (%s): unknown setting %q", i, e.Name, e.Metadata.Setting)
		}
	}

	g, err := geo.NewMemoryGazetteer(f.Localities)
	if err != nil {
		return nil, fmt.Errorf("error building gazetteer: %w", err)
	}
	return g, nil
}

// LoadFile reads a YAML gazetteer from path
func LoadFile(path string) (*geo.MemoryGazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading gazetteer %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded Cameroon gazetteer
func Default() (*geo.MemoryGazetteer, error) {
	data, err := defaultData.ReadFile("data/cameroon.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded gazetteer: %w", err)
	}
	return Parse(data)
}

// Load returns the gazetteer at path, or the embedded one when path is empty
func Load(path string) (*geo.MemoryGazetteer, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}
