package dragonscale

import "github.com/firebase/genkit/go/ai"

// RetrievalSource pairs an index with the number of items to sample from it.
type RetrievalSource struct {
	Samples int
	Index   VectorIndex
}

// RetrievedItem is one result of a TopN query.
type RetrievedItem struct {
	Score   float64 `json:"score"`
	ID      string  `json:"id"`
	Payload any     `json:"payload"`
}

// RetrievedID is one result of a TopNIDs query.
type RetrievedID struct {
	Score float64 `json:"score"`
	ID    string  `json:"id"`
}

// Document is a context passage handed to the completion pipeline.
type Document struct {
	ID              string            `json:"id"`
	Text            string            `json:"text"`
	AdditionalProps map[string]string `json:"additional_props"`
}

// Genkit converts the document to a Genkit document. The ID and additional
// properties are carried in the metadata.
func (d Document) Genkit() *ai.Document {
	metadata := make(map[string]any, len(d.AdditionalProps)+1)
	for k, v := range d.AdditionalProps {
		metadata[k] = v
	}
	metadata["id"] = d.ID
	return ai.DocumentFromText(d.Text, metadata)
}

// Resolution is the dynamic material resolved for one prompt.
type Resolution struct {
	Context []Document           `json:"context"`
	Tools   []*ai.ToolDefinition `json:"tools"`
}
