// Package dragonscale resolves the dynamic material that accompanies a prompt
// before it is sent to a model: context documents retrieved from vector
// indices and tool definitions selected statically or by similarity.
package dragonscale

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/dragonscale-rag/internal/eventbus"
	"github.com/ZanzyTHEbar/dragonscale-rag/internal/logger"
)

// Agent owns the retrieval sources, the toolset and the static tool list
// used to resolve dynamic context and tools. It is immutable after New and
// safe for concurrent use when its indices and tools are.
type Agent struct {
	name string

	dynamicContext []RetrievalSource
	dynamicTools   []RetrievalSource
	staticTools    []string
	tools          *ToolSet

	config   Config
	log      logger.Logger
	eventBus eventbus.EventBus
	ownsBus  bool
}

// Config holds the configuration options for an Agent.
type Config struct {
	// ResolveTimeout bounds every resolver call. Zero means no bound.
	ResolveTimeout time.Duration

	// ConcurrentFanout queries all sources of a resolver at once instead of
	// one after the other. Output order is unaffected.
	ConcurrentFanout bool

	// Event bus configuration
	EnableEventBus      bool
	EventBusBufferSize  int
	EventBusWorkerCount int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ResolveTimeout:      30 * time.Second,
		ConcurrentFanout:    false,
		EnableEventBus:      false,
		EventBusBufferSize:  100,
		EventBusWorkerCount: 2,
	}
}

// Option is a function that configures an Agent.
type Option func(*Agent)

// WithName sets the agent name used in logs and events.
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithConfig sets the configuration for the Agent.
func WithConfig(config Config) Option {
	return func(a *Agent) {
		a.config = config
	}
}

// WithTools sets the toolset the agent resolves names against.
func WithTools(tools *ToolSet) Option {
	return func(a *Agent) {
		a.tools = tools
	}
}

// WithTool registers a single tool, replacing any tool with the same name.
func WithTool(tool Tool) Option {
	return func(a *Agent) {
		if a.tools == nil {
			a.tools = NewToolSet()
		}
		if tool != nil {
			a.tools.tools[tool.Name()] = tool
		}
	}
}

// WithStaticTools appends names of tools that are always offered.
func WithStaticTools(names ...string) Option {
	return func(a *Agent) {
		a.staticTools = append(a.staticTools, names...)
	}
}

// WithDynamicContext appends a context source sampling n documents from index.
func WithDynamicContext(n int, index VectorIndex) Option {
	return func(a *Agent) {
		a.dynamicContext = append(a.dynamicContext, RetrievalSource{Samples: n, Index: index})
	}
}

// WithDynamicTools appends a tool source sampling n tool identifiers from index.
func WithDynamicTools(n int, index VectorIndex) Option {
	return func(a *Agent) {
		a.dynamicTools = append(a.dynamicTools, RetrievalSource{Samples: n, Index: index})
	}
}

// WithLogger sets the logger receiving diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(a *Agent) {
		a.log = l
	}
}

// New creates an Agent from the provided options.
func New(options ...Option) (*Agent, error) {
	a := &Agent{
		name:   "agent",
		config: DefaultConfig(),
	}
	for _, option := range options {
		option(a)
	}

	if a.tools == nil {
		a.tools = NewToolSet()
	}
	if a.log == nil {
		a.log = logger.Nop()
	}
	if err := validateSources("context", a.dynamicContext); err != nil {
		return nil, err
	}
	if err := validateSources("tool", a.dynamicTools); err != nil {
		return nil, err
	}
	if a.config.ResolveTimeout < 0 {
		return nil, NewConfigurationError("resolve timeout cannot be negative", nil)
	}

	if a.config.EnableEventBus && a.eventBus == nil {
		a.eventBus = eventbus.NewChannelEventBus(
			eventbus.WithBufferSize(a.config.EventBusBufferSize),
			eventbus.WithWorkerCount(a.config.EventBusWorkerCount),
			eventbus.WithLogger(a.log),
		)
		a.ownsBus = true
		a.log.Debug("Initialized default channel-based event bus", "agent", a.name)
	}
	return a, nil
}

func validateSources(kind string, sources []RetrievalSource) error {
	for i, source := range sources {
		if source.Index == nil {
			return NewConfigurationError(fmt.Sprintf("%s source %d has no index", kind, i), nil)
		}
		if source.Samples <= 0 {
			return NewConfigurationError(fmt.Sprintf("%s source %d must sample at least one item, got %d", kind, i, source.Samples), nil)
		}
	}
	return nil
}

// Name returns the agent name.
func (a *Agent) Name() string {
	return a.name
}

// Tools returns the agent's toolset.
func (a *Agent) Tools() *ToolSet {
	return a.tools
}

// StaticTools returns a copy of the static tool names.
func (a *Agent) StaticTools() []string {
	return append([]string(nil), a.staticTools...)
}

// EventBus returns the event bus receiving diagnostics, or nil.
func (a *Agent) EventBus() eventbus.EventBus {
	return a.eventBus
}

// Close releases the event bus when the agent created it.
func (a *Agent) Close() error {
	if a.ownsBus && a.eventBus != nil {
		return a.eventBus.Close()
	}
	return nil
}
