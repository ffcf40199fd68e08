package manifest

import (
	"context"
	"fmt"

	dragonscale "github.com/ZanzyTHEbar/dragonscale-rag"
	"github.com/ZanzyTHEbar/dragonscale-rag/internal/index"
	"github.com/ZanzyTHEbar/errbuilder-go"
)

type buildOptions struct {
	external     map[string]dragonscale.VectorIndex
	agentOptions []dragonscale.Option
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithIndex supplies the implementation of an external index.
func WithIndex(name string, idx dragonscale.VectorIndex) BuildOption {
	return func(o *buildOptions) {
		o.external[name] = idx
	}
}

// WithAgentOptions appends options applied after the manifest's own.
func WithAgentOptions(options ...dragonscale.Option) BuildOption {
	return func(o *buildOptions) {
		o.agentOptions = append(o.agentOptions, options...)
	}
}

// Build creates the manifest's indices and returns the agent they feed.
// Toolset indices are filled with the name and description of every tool
// in tools.
func Build(ctx context.Context, m *Manifest, tools *dragonscale.ToolSet, options ...BuildOption) (*dragonscale.Agent, error) {
	opts := &buildOptions{external: make(map[string]dragonscale.VectorIndex)}
	for _, option := range options {
		option(opts)
	}

	if err := m.Validate(); err != nil {
		return nil, dragonscale.NewConfigurationError("invalid manifest", err)
	}

	indices := make(map[string]dragonscale.VectorIndex, len(m.Indices))
	for _, spec := range m.Indices {
		idx, err := buildIndex(ctx, spec, tools, opts.external)
		if err != nil {
			return nil, dragonscale.NewConfigurationError(fmt.Sprintf("failed to build index '%s'", spec.Name), err)
		}
		indices[spec.Name] = idx
	}

	cfg := dragonscale.DefaultConfig()
	if timeout, ok, _ := m.Settings.Timeout(); ok {
		cfg.ResolveTimeout = timeout
	}
	cfg.ConcurrentFanout = m.Settings.ConcurrentFanout

	agentOptions := []dragonscale.Option{
		dragonscale.WithConfig(cfg),
		dragonscale.WithTools(tools),
		dragonscale.WithStaticTools(m.StaticTools...),
	}
	if m.Name != "" {
		agentOptions = append(agentOptions, dragonscale.WithName(m.Name))
	}
	for _, src := range m.Context {
		agentOptions = append(agentOptions, dragonscale.WithDynamicContext(src.Samples, indices[src.Index]))
	}
	for _, src := range m.Tools {
		agentOptions = append(agentOptions, dragonscale.WithDynamicTools(src.Samples, indices[src.Index]))
	}
	agentOptions = append(agentOptions, opts.agentOptions...)

	return dragonscale.New(agentOptions...)
}

func buildIndex(ctx context.Context, spec IndexSpec, tools *dragonscale.ToolSet, external map[string]dragonscale.VectorIndex) (dragonscale.VectorIndex, error) {
	switch spec.Type {
	case IndexTypeMemory:
		return index.NewMemory(spec.Documents...)
	case IndexTypeToolset:
		return toolsetIndex(ctx, tools)
	case IndexTypeExternal:
		idx, ok := external[spec.Name]
		if !ok || idx == nil {
			return nil, notFound(fmt.Sprintf("no implementation supplied for external index '%s'", spec.Name))
		}
		return idx, nil
	}
	return nil, fmt.Errorf("unknown index type '%s'", spec.Type)
}

// toolsetIndex indexes every tool under its name so that tool sources can
// retrieve identifiers the toolset resolves.
func toolsetIndex(ctx context.Context, tools *dragonscale.ToolSet) (*index.Memory, error) {
	mem, err := index.NewMemory()
	if err != nil {
		return nil, err
	}
	for _, name := range tools.Names() {
		tool, _ := tools.Get(name)
		def, err := tool.Definition(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("tool '%s': %w", name, err)
		}
		text := name
		if def != nil && def.Description != "" {
			text += " " + def.Description
		}
		if err := mem.Add(index.Entry{ID: name, Text: text}); err != nil {
			return nil, err
		}
	}
	return mem, nil
}

func notFound(msg string) error {
	return errbuilder.NotFoundErr(errbuilder.GenericErr(msg, nil))
}
