package patterns

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// file is the YAML shape of a domain pattern definition file.
type file struct {
	Domains []DomainPattern `yaml:"domains"`
}

// Load reads domain pattern definitions from YAML.
func Load(r io.Reader) (*Repository, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode domain patterns: %w", err)
	}

	repo := NewRepository()
	for _, p := range f.Domains {
		if err := repo.Add(p); err != nil {
			return nil, fmt.Errorf("invalid domain pattern: %w", err)
		}
	}
	return repo, nil
}

// LoadFile reads domain pattern definitions from a YAML file.
func LoadFile(path string) (*Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}
