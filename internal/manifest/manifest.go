// Package manifest loads agent descriptions from YAML or JSON files and
// builds them into resolver agents.
package manifest

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/dragonscale-rag/internal/index"
)

// Index types understood by Build.
const (
	IndexTypeMemory   = "memory"
	IndexTypeToolset  = "toolset"
	IndexTypeExternal = "external"
)

// Manifest describes an agent: its indices, the sources drawn from them and
// its static tools.
type Manifest struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	StaticTools []string     `yaml:"static_tools,omitempty" json:"static_tools,omitempty"`
	Indices     []IndexSpec  `yaml:"indices,omitempty" json:"indices,omitempty"`
	Context     []SourceSpec `yaml:"context,omitempty" json:"context,omitempty"`
	Tools       []SourceSpec `yaml:"tools,omitempty" json:"tools,omitempty"`
	Settings    Settings     `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// IndexSpec declares a named index. Memory indices carry their documents,
// toolset indices are filled from the registered tools and external indices
// are supplied to Build with WithIndex.
type IndexSpec struct {
	Name      string        `yaml:"name" json:"name"`
	Type      string        `yaml:"type" json:"type"`
	Documents []index.Entry `yaml:"documents,omitempty" json:"documents,omitempty"`
}

// SourceSpec draws Samples results from the named index.
type SourceSpec struct {
	Index   string `yaml:"index" json:"index"`
	Samples int    `yaml:"samples" json:"samples"`
}

// Settings tune the built agent.
type Settings struct {
	ResolveTimeout   string `yaml:"resolve_timeout,omitempty" json:"resolve_timeout,omitempty"`
	ConcurrentFanout bool   `yaml:"concurrent_fanout,omitempty" json:"concurrent_fanout,omitempty"`
}

// Timeout parses ResolveTimeout. An empty value yields ok == false.
func (s Settings) Timeout() (d time.Duration, ok bool, err error) {
	return parseDuration("resolve_timeout", s.ResolveTimeout)
}

func parseDuration(field, value string) (time.Duration, bool, error) {
	if value == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, false, fmt.Errorf("%s cannot be negative", field)
	}
	return d, true, nil
}

// Validate checks for duplicate or unnamed indices, unknown index types,
// dangling source references and non-positive sample counts.
func (m *Manifest) Validate() error {
	types := make(map[string]string, len(m.Indices))
	for i, idx := range m.Indices {
		if idx.Name == "" {
			return fmt.Errorf("index %d has no name", i)
		}
		if _, exists := types[idx.Name]; exists {
			return fmt.Errorf("duplicate index name found: %s", idx.Name)
		}
		switch idx.Type {
		case IndexTypeMemory, IndexTypeToolset, IndexTypeExternal:
		default:
			return fmt.Errorf("index '%s' has unknown type '%s'", idx.Name, idx.Type)
		}
		if idx.Type != IndexTypeMemory && len(idx.Documents) > 0 {
			return fmt.Errorf("index '%s' of type '%s' cannot declare documents", idx.Name, idx.Type)
		}
		types[idx.Name] = idx.Type
	}

	for _, group := range []struct {
		name    string
		sources []SourceSpec
	}{{"context", m.Context}, {"tools", m.Tools}} {
		for i, src := range group.sources {
			if _, exists := types[src.Index]; !exists {
				return notFound(fmt.Sprintf("%s source %d references missing index '%s'", group.name, i, src.Index))
			}
			if src.Samples <= 0 {
				return fmt.Errorf("%s source %d must sample at least one result, got %d", group.name, i, src.Samples)
			}
		}
	}

	if _, _, err := m.Settings.Timeout(); err != nil {
		return err
	}
	return nil
}
