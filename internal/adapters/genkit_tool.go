package adapters

import (
	"context"

	dragonscale "github.com/ZanzyTHEbar/dragonscale-rag"
	"github.com/firebase/genkit/go/ai"
)

// GenkitDefiner is satisfied by Genkit tools.
type GenkitDefiner interface {
	Definition() *ai.ToolDefinition
}

// GenkitTool exposes a Genkit tool through the dragonscale.Tool interface.
type GenkitTool struct {
	tool GenkitDefiner
}

var _ dragonscale.Tool = (*GenkitTool)(nil)

// NewGenkitTool wraps tool.
func NewGenkitTool(tool GenkitDefiner) *GenkitTool {
	return &GenkitTool{tool: tool}
}

// Name returns the name from the wrapped tool's definition.
func (t *GenkitTool) Name() string {
	if def := t.tool.Definition(); def != nil {
		return def.Name
	}
	return ""
}

// Definition returns the wrapped tool's definition unchanged.
func (t *GenkitTool) Definition(ctx context.Context, prompt string) (*ai.ToolDefinition, error) {
	return t.tool.Definition(), nil
}
