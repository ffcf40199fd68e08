package dragonscale

import (
	"fmt"
	"maps"
	"slices"
)

// ToolSet maps tool names to their implementations. It is filled before the
// agent is built and only read afterwards.
type ToolSet struct {
	tools map[string]Tool
}

// NewToolSet creates a ToolSet holding the given tools.
// Later tools replace earlier ones with the same name.
func NewToolSet(tools ...Tool) *ToolSet {
	ts := &ToolSet{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if tool != nil {
			ts.tools[tool.Name()] = tool
		}
	}
	return ts
}

// Register adds a tool, refusing duplicates.
func (ts *ToolSet) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := ts.tools[name]; exists {
		return fmt.Errorf("tool with name '%s' already exists", name)
	}
	ts.tools[name] = tool
	return nil
}

// Get looks up a tool by name.
func (ts *ToolSet) Get(name string) (Tool, bool) {
	if ts == nil {
		return nil, false
	}
	tool, ok := ts.tools[name]
	return tool, ok
}

// Names returns the registered tool names in sorted order.
func (ts *ToolSet) Names() []string {
	if ts == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(ts.tools))
}

// Len returns the number of registered tools.
func (ts *ToolSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.tools)
}
