package dragonscale

import (
	"strings"

	"github.com/firebase/genkit/go/ai"
)

// Prompt is a message that may carry text usable as a retrieval query.
type Prompt interface {
	// RAGText returns the searchable text of the prompt, if any.
	RAGText() (string, bool)
}

// Text is a plain-text user prompt. Blank text carries no query.
type Text string

func (t Text) RAGText() (string, bool) {
	if strings.TrimSpace(string(t)) == "" {
		return "", false
	}
	return string(t), true
}

// Message wraps a Genkit message as a Prompt. Only user messages carry
// retrievable text.
func Message(m *ai.Message) Prompt {
	return messagePrompt{msg: m}
}

type messagePrompt struct {
	msg *ai.Message
}

func (p messagePrompt) RAGText() (string, bool) {
	if p.msg == nil || p.msg.Role != ai.RoleUser {
		return "", false
	}
	return firstText(p.msg.Content)
}

// Parts treats a list of Genkit parts as user content.
func Parts(parts ...*ai.Part) Prompt {
	return partsPrompt(parts)
}

type partsPrompt []*ai.Part

func (p partsPrompt) RAGText() (string, bool) {
	return firstText(p)
}

// firstText returns the first text part with non-blank content. Blank text
// parts are skipped rather than returned, so a message whose first text part
// is whitespace still yields the text of a later part.
func firstText(parts []*ai.Part) (string, bool) {
	for _, part := range parts {
		if part == nil || !part.IsText() {
			continue
		}
		if strings.TrimSpace(part.Text) != "" {
			return part.Text, true
		}
	}
	return "", false
}
