package dragonscale

import (
	"context"

	"github.com/firebase/genkit/go/ai"
)

// VectorIndex is a retrieval index queried by similarity to a text query.
// Implementations must be safe for concurrent reads.
type VectorIndex interface {
	// TopN returns at most n items, most relevant first, with their payloads.
	TopN(ctx context.Context, query string, n int) ([]RetrievedItem, error)

	// TopNIDs is TopN without payloads.
	TopNIDs(ctx context.Context, query string, n int) ([]RetrievedID, error)
}

// Tool is a callable tool implementation that can describe itself to a model.
type Tool interface {
	// Name returns the tool's name.
	Name() string

	// Definition returns the tool's interface for the given prompt text.
	// Implementations may tailor the schema to the prompt.
	Definition(ctx context.Context, prompt string) (*ai.ToolDefinition, error)
}
