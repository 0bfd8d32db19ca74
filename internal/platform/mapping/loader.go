package mapping

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a schema. JSON documents are valid YAML, so
// both formats load through the same path.
type File struct {
	Version  string            `yaml:"version,omitempty"`
	ObjKey   string            `yaml:"obj_key,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
	Mappings []Map             `yaml:"mappings"`
}

// LoadFile loads and indexes a schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML or JSON schema data.
func Parse(data []byte) (*Schema, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if f.Version == "" {
		f.Version = "1"
	}
	return New(f.ObjKey, f.Mappings)
}

// Marshal serializes the schema back to YAML, maps in declaration order.
func Marshal(s *Schema) ([]byte, error) {
	return yaml.Marshal(File{Version: "1", ObjKey: s.ObjKey(), Mappings: s.Maps()})
}

// MarshalMap renders a single map, for CLI output.
func MarshalMap(m Map) ([]byte, error) {
	return yaml.Marshal(m)
}
