package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type registryFile struct {
	Modules []ModuleDefinition `yaml:"modules"`
}

// Parse builds a Registry from a YAML document of the form:
//
//	modules:
//	  - name: Budget
//	    user_id_field: user_id
//	    tables:
//	      budget_transactions:
//	        id: {type: uuid, required: true}
func Parse(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema registry: %w", err)
	}
	if len(f.Modules) == 0 {
		return nil, fmt.Errorf("schema registry declares no modules")
	}
	return New(f.Modules)
}

// LoadFile reads a registry definition from path. An empty path returns the
// built-in HomeBrew registry.
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return HomeBrew(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema registry %s: %w", path, err)
	}
	return Parse(data)
}
