package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFAQ(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory(
		Entry{ID: "refunds", Text: "Refund policy: refunds within 30 days", Payload: map[string]any{"title": "Refunds"}},
		Entry{ID: "shipping", Text: "Shipping takes 5 days"},
		Entry{ID: "returns", Text: "Returns and refund requests"},
		Entry{ID: "privacy", Text: "Privacy policy"},
	)
	require.NoError(t, err)
	return m
}

func TestMemory_TopNRanking(t *testing.T) {
	m := newFAQ(t)

	items, err := m.TopN(context.Background(), "refund policy", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "refunds", items[0].ID)
	assert.Equal(t, 1.0, items[0].Score)
	assert.Equal(t, map[string]any{"title": "Refunds"}, items[0].Payload)

	// returns and privacy tie at 0.5; insertion order wins.
	assert.Equal(t, "returns", items[1].ID)
	assert.Equal(t, "privacy", items[2].ID)
	assert.Equal(t, 0.5, items[1].Score)
	assert.Equal(t, "Returns and refund requests", items[1].Payload)
}

func TestMemory_TopNLimitsAndExcludesMisses(t *testing.T) {
	m := newFAQ(t)

	items, err := m.TopN(context.Background(), "shipping", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "shipping", items[0].ID)

	items, err = m.TopN(context.Background(), "refund policy", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = m.TopN(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemory_TopNIDsMatchesTopN(t *testing.T) {
	m := newFAQ(t)

	items, err := m.TopN(context.Background(), "refund days", 4)
	require.NoError(t, err)
	ids, err := m.TopNIDs(context.Background(), "refund days", 4)
	require.NoError(t, err)

	require.Len(t, ids, len(items))
	for i := range items {
		assert.Equal(t, items[i].ID, ids[i].ID)
		assert.Equal(t, items[i].Score, ids[i].Score)
	}
}

func TestMemory_Errors(t *testing.T) {
	m := newFAQ(t)

	assert.Error(t, m.Add(Entry{ID: "refunds", Text: "again"}))
	assert.Error(t, m.Add(Entry{Text: "no id"}))
	assert.Equal(t, 4, m.Len())

	_, err := m.TopN(context.Background(), "refund", 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.TopNIDs(ctx, "refund", 1)
	assert.Error(t, err)
}
