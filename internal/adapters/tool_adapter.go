package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	dragonscale "github.com/ZanzyTHEbar/dragonscale-rag"
	"github.com/firebase/genkit/go/ai"
	"github.com/invopop/jsonschema"
)

// ToolFunc is the Go function wrapped by a GoToolAdapter.
type ToolFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

// GoToolAdapter adapts a standard Go function to the dragonscale.Tool interface.
type GoToolAdapter struct {
	toolFunc    ToolFunc
	name        string
	validator   func(map[string]any) error
	description string
	category    string
	parameters  map[string]string
	returns     string
	examples    []string
	inputType   any
	outputType  any
}

var _ dragonscale.Tool = (*GoToolAdapter)(nil)

// ToolOption represents an option for configuring a GoToolAdapter.
type ToolOption func(*GoToolAdapter)

// WithValidator sets a custom validator function for the tool.
func WithValidator(validator func(map[string]any) error) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.validator = validator
	}
}

// WithCategory sets the tool's category.
func WithCategory(category string) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.category = category
	}
}

// WithDescription sets a detailed description for the tool.
func WithDescription(description string) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.description = description
	}
}

// WithParameters describes string parameters by name. It is ignored when an
// input type is set.
func WithParameters(parameters map[string]string) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.parameters = parameters
	}
}

// WithReturns sets the return value description.
func WithReturns(returns string) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.returns = returns
	}
}

// WithExamples adds usage examples to the description.
func WithExamples(examples []string) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.examples = examples
	}
}

// WithInputType derives the input schema from the Go type of v.
func WithInputType(v any) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.inputType = v
	}
}

// WithOutputType derives the output schema from the Go type of v.
func WithOutputType(v any) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.outputType = v
	}
}

// NewGoToolAdapter creates a new adapter for a Go function.
func NewGoToolAdapter(name string, toolFunc ToolFunc, options ...ToolOption) *GoToolAdapter {
	adapter := &GoToolAdapter{
		toolFunc: toolFunc,
		name:     name,
		validator: func(input map[string]any) error {
			if input == nil {
				return fmt.Errorf("input cannot be nil")
			}
			return nil
		},
	}

	for _, option := range options {
		option(adapter)
	}

	return adapter
}

// Definition implements the dragonscale.Tool interface. The definition does
// not depend on the prompt.
func (a *GoToolAdapter) Definition(ctx context.Context, prompt string) (*ai.ToolDefinition, error) {
	input, err := a.inputSchema()
	if err != nil {
		return nil, fmt.Errorf("input schema for %s: %w", a.name, err)
	}
	def := &ai.ToolDefinition{
		Name:        a.name,
		Description: a.fullDescription(),
		InputSchema: input,
	}
	if a.outputType != nil {
		output, err := reflectSchema(a.outputType)
		if err != nil {
			return nil, fmt.Errorf("output schema for %s: %w", a.name, err)
		}
		def.OutputSchema = output
	}
	return def, nil
}

// Execute runs the wrapped function after validating input.
func (a *GoToolAdapter) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if a.toolFunc == nil {
		return nil, fmt.Errorf("tool function is nil")
	}

	if err := a.Validate(input); err != nil {
		return nil, fmt.Errorf("input validation failed for %s: %w", a.name, err)
	}

	return a.toolFunc(ctx, input)
}

// Validate checks input with the configured validator.
func (a *GoToolAdapter) Validate(input map[string]any) error {
	if a.validator != nil {
		return a.validator(input)
	}
	return nil
}

// Name implements the dragonscale.Tool interface.
func (a *GoToolAdapter) Name() string {
	return a.name
}

// Category returns the tool's category.
func (a *GoToolAdapter) Category() string {
	return a.category
}

// Description returns the short description, without returns or examples.
func (a *GoToolAdapter) Description() string {
	return a.description
}

func (a *GoToolAdapter) fullDescription() string {
	var sb strings.Builder
	if a.category != "" {
		fmt.Fprintf(&sb, "[%s] ", a.category)
	}
	sb.WriteString(a.description)
	if a.returns != "" {
		fmt.Fprintf(&sb, "\nReturns: %s", a.returns)
	}
	if len(a.examples) > 0 {
		sb.WriteString("\nExamples:")
		for _, example := range a.examples {
			fmt.Fprintf(&sb, "\n  %s", example)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (a *GoToolAdapter) inputSchema() (map[string]any, error) {
	if a.inputType != nil {
		return reflectSchema(a.inputType)
	}

	properties := make(map[string]any, len(a.parameters))
	for name, description := range a.parameters {
		properties[name] = map[string]any{
			"type":        "string",
			"description": description,
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(a.parameters) > 0 {
		schema["required"] = slices.Sorted(maps.Keys(a.parameters))
	}
	return schema, nil
}

// reflectSchema builds an inline JSON schema for the Go type of v.
func reflectSchema(v any) (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	raw, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, err
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	return schema, nil
}
