// Package index provides VectorIndex implementations for the resolvers.
package index

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	dragonscale "github.com/ZanzyTHEbar/dragonscale-rag"
)

// Entry is a single document stored in a Memory index.
type Entry struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
	// Payload is returned by TopN. When nil the entry text is used.
	Payload any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Memory is an in-process index that scores entries by the share of query
// terms they contain. It is meant for small corpora, tests and manifests.
type Memory struct {
	mu      sync.RWMutex
	entries []memoryEntry
}

type memoryEntry struct {
	Entry
	terms map[string]struct{}
}

var _ dragonscale.VectorIndex = (*Memory)(nil)

// NewMemory creates a Memory index holding entries.
func NewMemory(entries ...Entry) (*Memory, error) {
	m := &Memory{}
	if err := m.Add(entries...); err != nil {
		return nil, err
	}
	return m, nil
}

// Add appends entries in order. Entry ids must be non-empty and unique.
func (m *Memory) Add(entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry id cannot be empty")
		}
		if slices.ContainsFunc(m.entries, func(existing memoryEntry) bool { return existing.ID == e.ID }) {
			return fmt.Errorf("entry with id '%s' already exists", e.ID)
		}
		terms := make(map[string]struct{})
		for _, term := range tokenize(e.Text) {
			terms[term] = struct{}{}
		}
		m.entries = append(m.entries, memoryEntry{Entry: e, terms: terms})
	}
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// TopN returns up to n entries matching query, best first.
func (m *Memory) TopN(ctx context.Context, query string, n int) ([]dragonscale.RetrievedItem, error) {
	scored, err := m.search(ctx, query, n)
	if err != nil {
		return nil, err
	}
	items := make([]dragonscale.RetrievedItem, 0, len(scored))
	for _, s := range scored {
		payload := s.entry.Payload
		if payload == nil {
			payload = s.entry.Text
		}
		items = append(items, dragonscale.RetrievedItem{Score: s.score, ID: s.entry.ID, Payload: payload})
	}
	return items, nil
}

// TopNIDs is TopN without payloads.
func (m *Memory) TopNIDs(ctx context.Context, query string, n int) ([]dragonscale.RetrievedID, error) {
	scored, err := m.search(ctx, query, n)
	if err != nil {
		return nil, err
	}
	ids := make([]dragonscale.RetrievedID, 0, len(scored))
	for _, s := range scored {
		ids = append(ids, dragonscale.RetrievedID{Score: s.score, ID: s.entry.ID})
	}
	return ids, nil
}

type scoredEntry struct {
	entry *memoryEntry
	score float64
}

func (m *Memory) search(ctx context.Context, query string, n int) ([]scoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}

	queryTerms := slices.Compact(slices.Sorted(slices.Values(tokenize(query))))
	if len(queryTerms) == 0 {
		return []scoredEntry{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	scored := make([]scoredEntry, 0, len(m.entries))
	for i := range m.entries {
		e := &m.entries[i]
		hits := 0
		for _, term := range queryTerms {
			if _, ok := e.terms[term]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		scored = append(scored, scoredEntry{entry: e, score: float64(hits) / float64(len(queryTerms))})
	}

	// Stable sort keeps insertion order between equal scores.
	slices.SortStableFunc(scored, func(a, b scoredEntry) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
