package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader decodes a Manifest from raw bytes in one format.
type Loader interface {
	Decode(data []byte) (*Manifest, error)
	Format() string // e.g., "yaml", "json"
}

// loaderRegistry holds registered Loaders by format name.
var loaderRegistry = make(map[string]Loader)

// RegisterLoader registers a Loader for its format.
func RegisterLoader(loader Loader) {
	loaderRegistry[loader.Format()] = loader
}

// GetLoader retrieves a loader by format name (e.g., "yaml").
func GetLoader(format string) (Loader, bool) {
	loader, ok := loaderRegistry[format]
	return loader, ok
}

// YAMLLoader decodes YAML manifests.
type YAMLLoader struct{}

func (YAMLLoader) Decode(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	return &m, nil
}

func (YAMLLoader) Format() string { return "yaml" }

// JSONLoader decodes JSON manifests.
type JSONLoader struct{}

func (JSONLoader) Decode(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
	}
	return &m, nil
}

func (JSONLoader) Format() string { return "json" }

func init() {
	RegisterLoader(YAMLLoader{})
	RegisterLoader(JSONLoader{})
}

// Parse decodes data with the loader registered for format and validates the result.
func Parse(format string, data []byte) (*Manifest, error) {
	loader, ok := GetLoader(format)
	if !ok {
		return nil, fmt.Errorf("no manifest loader for format '%s'", format)
	}
	m, err := loader.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return m, nil
}

// LoadFile reads and validates the manifest at path, picking the format from
// the file extension.
func LoadFile(path string) (*Manifest, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "yml" {
		format = "yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest file: %w", err)
	}
	return Parse(format, data)
}
