package state

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/five82/cubespace/internal/cube"
)

//go:embed fallback.yaml
var fallbackYAML []byte

// Dataset is a static set of records shown in fallback mode.
type Dataset struct {
	Cubes  []cube.RemoteCubeView  `yaml:"cubes"`
	Owners []cube.RemoteOwnerView `yaml:"owners"`
}

// ParseDataset decodes a YAML dataset.
func ParseDataset(data []byte) (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("parse fallback dataset: %w", err)
	}
	return ds, nil
}

// DefaultFallback returns the dataset embedded in the binary.
func DefaultFallback() Dataset {
	ds, err := ParseDataset(fallbackYAML)
	if err != nil {
		panic(err)
	}
	return ds
}
