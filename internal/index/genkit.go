package index

import (
	"context"
	"fmt"
	"strings"

	dragonscale "github.com/ZanzyTHEbar/dragonscale-rag"
	"github.com/firebase/genkit/go/ai"
)

// RetrieveFunc fetches up to k documents for query.
type RetrieveFunc func(ctx context.Context, query string, k int) ([]*ai.Document, error)

// Genkit adapts a Genkit retriever to the VectorIndex interface.
type Genkit struct {
	retrieve RetrieveFunc
	idKey    string
	scoreKey string
	options  map[string]any
}

// GenkitOption is a function that configures a Genkit index.
type GenkitOption func(*Genkit)

// WithIDKey sets the metadata key holding the document id.
func WithIDKey(key string) GenkitOption {
	return func(g *Genkit) {
		g.idKey = key
	}
}

// WithScoreKey sets the metadata key holding the similarity score.
func WithScoreKey(key string) GenkitOption {
	return func(g *Genkit) {
		g.scoreKey = key
	}
}

// WithRetrieverOption adds an entry to the retriever config sent with every query.
func WithRetrieverOption(key string, value any) GenkitOption {
	return func(g *Genkit) {
		g.options[key] = value
	}
}

var _ dragonscale.VectorIndex = (*Genkit)(nil)

// NewGenkit creates an index backed by a Genkit retriever.
func NewGenkit(retriever ai.Retriever, options ...GenkitOption) *Genkit {
	g := newGenkit(options...)
	g.retrieve = func(ctx context.Context, query string, k int) ([]*ai.Document, error) {
		config := map[string]any{"k": k}
		for key, value := range g.options {
			config[key] = value
		}
		resp, err := ai.Retrieve(ctx, retriever,
			ai.WithTextDocs(query),
			ai.WithConfig(config),
		)
		if err != nil {
			return nil, err
		}
		return resp.Documents, nil
	}
	return g
}

// NewGenkitFunc creates an index backed by an arbitrary retrieve function.
func NewGenkitFunc(retrieve RetrieveFunc, options ...GenkitOption) *Genkit {
	g := newGenkit(options...)
	g.retrieve = retrieve
	return g
}

func newGenkit(options ...GenkitOption) *Genkit {
	g := &Genkit{
		idKey:    "id",
		scoreKey: "score",
		options:  map[string]any{},
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// TopN returns up to n documents. The payload carries the document text and
// its metadata.
func (g *Genkit) TopN(ctx context.Context, query string, n int) ([]dragonscale.RetrievedItem, error) {
	docs, err := g.query(ctx, query, n)
	if err != nil {
		return nil, err
	}
	items := make([]dragonscale.RetrievedItem, 0, len(docs))
	for i, doc := range docs {
		id, score := g.identify(doc, i)
		payload := map[string]any{"text": documentText(doc)}
		if len(doc.Metadata) > 0 {
			payload["metadata"] = doc.Metadata
		}
		items = append(items, dragonscale.RetrievedItem{Score: score, ID: id, Payload: payload})
	}
	return items, nil
}

// TopNIDs returns up to n document ids.
func (g *Genkit) TopNIDs(ctx context.Context, query string, n int) ([]dragonscale.RetrievedID, error) {
	docs, err := g.query(ctx, query, n)
	if err != nil {
		return nil, err
	}
	ids := make([]dragonscale.RetrievedID, 0, len(docs))
	for i, doc := range docs {
		id, score := g.identify(doc, i)
		ids = append(ids, dragonscale.RetrievedID{Score: score, ID: id})
	}
	return ids, nil
}

func (g *Genkit) query(ctx context.Context, query string, n int) ([]*ai.Document, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}
	docs, err := g.retrieve(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("vector retrieval failed: %w", err)
	}
	// Retrievers may ignore k.
	if len(docs) > n {
		docs = docs[:n]
	}
	out := docs[:0:0]
	for _, doc := range docs {
		if doc != nil {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (g *Genkit) identify(doc *ai.Document, position int) (string, float64) {
	id := fmt.Sprintf("doc-%d", position)
	if v, ok := doc.Metadata[g.idKey]; ok {
		if s := fmt.Sprint(v); s != "" {
			id = s
		}
	}

	score := 0.0
	switch v := doc.Metadata[g.scoreKey].(type) {
	case float64:
		score = v
	case float32:
		score = float64(v)
	case int:
		score = float64(v)
	}
	return id, score
}

func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, part := range doc.Content {
		if part != nil && part.IsText() {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
