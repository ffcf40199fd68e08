package dragonscale

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/dragonscale-rag/internal/eventbus"
	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inFlight tracks how many index queries run at the same time.
type inFlight struct {
	mu      sync.Mutex
	current int
	max     int
}

func (f *inFlight) enter() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current++
	if f.current > f.max {
		f.max = f.current
	}
}

func (f *inFlight) leave() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current--
}

type queryCall struct {
	query string
	n     int
}

type fakeIndex struct {
	items []RetrievedItem
	err   error
	delay time.Duration
	// barrier, when set, makes every query wait until all sharing it have started.
	barrier  *sync.WaitGroup
	tracker  *inFlight
	blockCtx bool

	mu    sync.Mutex
	calls []queryCall
}

func (f *fakeIndex) record(ctx context.Context, query string, n int) error {
	f.mu.Lock()
	f.calls = append(f.calls, queryCall{query: query, n: n})
	f.mu.Unlock()

	if f.tracker != nil {
		f.tracker.enter()
		defer f.tracker.leave()
	}
	if f.barrier != nil {
		f.barrier.Done()
		waited := make(chan struct{})
		go func() {
			f.barrier.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(time.Second):
			return errors.New("sources were not queried concurrently")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.blockCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.err
}

func (f *fakeIndex) TopN(ctx context.Context, query string, n int) ([]RetrievedItem, error) {
	if err := f.record(ctx, query, n); err != nil {
		return nil, err
	}
	if n < len(f.items) {
		return f.items[:n], nil
	}
	return f.items, nil
}

func (f *fakeIndex) TopNIDs(ctx context.Context, query string, n int) ([]RetrievedID, error) {
	items, err := f.TopN(ctx, query, n)
	if err != nil {
		return nil, err
	}
	ids := make([]RetrievedID, 0, len(items))
	for _, item := range items {
		ids = append(ids, RetrievedID{Score: item.Score, ID: item.ID})
	}
	return ids, nil
}

func (f *fakeIndex) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func itemsOf(ids ...string) []RetrievedItem {
	items := make([]RetrievedItem, 0, len(ids))
	for i, id := range ids {
		items = append(items, RetrievedItem{Score: 1 - float64(i)/10, ID: id, Payload: map[string]any{"id": id}})
	}
	return items
}

type fakeTool struct {
	name string
	err  error

	mu      sync.Mutex
	prompts []string
}

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Definition(_ context.Context, prompt string) (*ai.ToolDefinition, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &ai.ToolDefinition{Name: f.name, Description: "tool " + f.name}, nil
}

type captureLogger struct {
	mu    sync.Mutex
	warns []string
}

func (c *captureLogger) Debug(string, ...any) {}
func (c *captureLogger) Info(string, ...any)  {}
func (c *captureLogger) Error(string, ...any) {}
func (c *captureLogger) Warn(msg string, keyvals ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i+1 < len(keyvals); i += 2 {
		if keyvals[i] == "tool" {
			c.warns = append(c.warns, fmt.Sprint(keyvals[i+1]))
		}
	}
}

func (c *captureLogger) warned() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warns...)
}

func docIDs(docs []Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

func toolNames(defs []*ai.ToolDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return names
}

func TestResolve_InvalidPromptIssuesNoQueries(t *testing.T) {
	ctxIndex := &fakeIndex{items: itemsOf("a1")}
	toolIndex := &fakeIndex{items: itemsOf("search")}
	calc := &fakeTool{name: "calculator"}
	agent, err := New(
		WithDynamicContext(1, ctxIndex),
		WithDynamicTools(1, toolIndex),
		WithTool(calc),
		WithStaticTools("calculator"),
	)
	require.NoError(t, err)

	for _, prompt := range []Prompt{nil, Text(""), Message(ai.NewModelTextMessage("hi"))} {
		docs, err := agent.ResolveContext(context.Background(), prompt)
		assert.Nil(t, docs)
		assert.True(t, IsCode(err, ErrCodeInvalidPrompt), "got %v", err)

		defs, err := agent.ResolveTools(context.Background(), prompt)
		assert.Nil(t, defs)
		assert.True(t, IsCode(err, ErrCodeInvalidPrompt), "got %v", err)
	}
	assert.Zero(t, ctxIndex.callCount())
	assert.Zero(t, toolIndex.callCount())
	assert.Empty(t, calc.prompts)
}

func TestResolveContext_SourceThenRankOrder(t *testing.T) {
	a := &fakeIndex{items: itemsOf("a1", "a2", "a3")}
	b := &fakeIndex{items: itemsOf("b1", "b2")}
	agent, err := New(WithDynamicContext(2, a), WithDynamicContext(1, b))
	require.NoError(t, err)

	docs, err := agent.ResolveContext(context.Background(), Text("refund policy"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1"}, docIDs(docs))
	assert.Equal(t, []queryCall{{query: "refund policy", n: 2}}, a.calls)
	assert.Equal(t, []queryCall{{query: "refund policy", n: 1}}, b.calls)
}

func TestResolveContext_RendersPayloads(t *testing.T) {
	idx := &fakeIndex{items: []RetrievedItem{
		{Score: 0.9, ID: "doc", Payload: map[string]any{"title": "Refunds"}},
		{Score: 0.8, ID: "bad", Payload: unencodable{}},
	}}
	agent, err := New(WithDynamicContext(2, idx))
	require.NoError(t, err)

	docs, err := agent.ResolveContext(context.Background(), Text("refunds"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "{\n  \"title\": \"Refunds\"\n}", docs[0].Text)
	assert.Equal(t, "unencodable{}", docs[1].Text)
	for _, d := range docs {
		assert.NotNil(t, d.AdditionalProps)
		assert.Empty(t, d.AdditionalProps)
	}
}

func TestResolveContext_NoSources(t *testing.T) {
	agent, err := New()
	require.NoError(t, err)

	docs, err := agent.ResolveContext(context.Background(), Text("anything"))
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestResolveContext_FailFast(t *testing.T) {
	storageErr := errors.New("storage unavailable")
	a := &fakeIndex{items: itemsOf("a1")}
	b := &fakeIndex{err: storageErr}
	c := &fakeIndex{items: itemsOf("c1")}
	agent, err := New(WithDynamicContext(1, a), WithDynamicContext(1, b), WithDynamicContext(1, c))
	require.NoError(t, err)

	docs, err := agent.ResolveContext(context.Background(), Text("query"))
	assert.Nil(t, docs)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeRetrieval))
	assert.ErrorIs(t, err, storageErr)

	var dsErr *DragonScaleError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, StageContext, dsErr.Stage)
	assert.Contains(t, dsErr.Message, "source 1")

	assert.Equal(t, 1, a.callCount())
	assert.Equal(t, 1, b.callCount())
	assert.Zero(t, c.callCount(), "sources after a failure must not be queried")
}

func TestResolveTools_StaticThenDynamic(t *testing.T) {
	logs := &captureLogger{}
	toolIndex := &fakeIndex{items: itemsOf("search", "ghost")}
	agent, err := New(
		WithTool(&fakeTool{name: "calculator"}),
		WithTool(&fakeTool{name: "search"}),
		WithStaticTools("calculator"),
		WithDynamicTools(2, toolIndex),
		WithLogger(logs),
	)
	require.NoError(t, err)

	defs, err := agent.ResolveTools(context.Background(), Text("what is 2+2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"calculator", "search"}, toolNames(defs))
	assert.Equal(t, []string{"ghost"}, logs.warned())
}

func TestResolveTools_MissingStaticToolIsSkipped(t *testing.T) {
	logs := &captureLogger{}
	agent, err := New(
		WithTool(&fakeTool{name: "clock"}),
		WithStaticTools("missing", "clock"),
		WithLogger(logs),
	)
	require.NoError(t, err)

	defs, err := agent.ResolveTools(context.Background(), Text("time?"))
	require.NoError(t, err)
	assert.Equal(t, []string{"clock"}, toolNames(defs))
	assert.Equal(t, []string{"missing"}, logs.warned())
}

func TestResolveTools_StaticOrderIndependentOfSpeed(t *testing.T) {
	slow := &fakeIndex{items: itemsOf("d1", "d2"), delay: 20 * time.Millisecond}
	fast := &fakeIndex{items: itemsOf("d3")}
	tools := NewToolSet(
		&fakeTool{name: "s2"}, &fakeTool{name: "s1"},
		&fakeTool{name: "d1"}, &fakeTool{name: "d2"}, &fakeTool{name: "d3"},
	)
	for _, concurrent := range []bool{false, true} {
		t.Run(fmt.Sprintf("concurrent=%v", concurrent), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ConcurrentFanout = concurrent
			agent, err := New(
				WithConfig(cfg),
				WithTools(tools),
				WithStaticTools("s2", "s1"),
				WithDynamicTools(2, slow),
				WithDynamicTools(1, fast),
			)
			require.NoError(t, err)

			defs, err := agent.ResolveTools(context.Background(), Text("q"))
			require.NoError(t, err)
			assert.Equal(t, []string{"s2", "s1", "d1", "d2", "d3"}, toolNames(defs))
		})
	}
}

func TestResolveTools_PromptTextReachesDefinitions(t *testing.T) {
	calc := &fakeTool{name: "calculator"}
	agent, err := New(WithTool(calc), WithStaticTools("calculator"))
	require.NoError(t, err)

	_, err = agent.ResolveTools(context.Background(), Message(ai.NewUserTextMessage("compute 3*4")))
	require.NoError(t, err)
	assert.Equal(t, []string{"compute 3*4"}, calc.prompts)
}

func TestResolveTools_DynamicSourceFailure(t *testing.T) {
	storageErr := errors.New("index offline")
	agent, err := New(
		WithTool(&fakeTool{name: "calculator"}),
		WithStaticTools("calculator"),
		WithDynamicTools(1, &fakeIndex{err: storageErr}),
	)
	require.NoError(t, err)

	defs, err := agent.ResolveTools(context.Background(), Text("q"))
	assert.Nil(t, defs)
	assert.True(t, IsCode(err, ErrCodeRetrieval))
	assert.ErrorIs(t, err, storageErr)
}

func TestResolveTools_DefinitionFailurePropagates(t *testing.T) {
	defErr := errors.New("schema unavailable")
	agent, err := New(
		WithTool(&fakeTool{name: "broken", err: defErr}),
		WithStaticTools("broken"),
	)
	require.NoError(t, err)

	defs, err := agent.ResolveTools(context.Background(), Text("q"))
	assert.Nil(t, defs)
	assert.True(t, IsCode(err, ErrCodeToolDefinition))
	assert.ErrorIs(t, err, defErr)
}

func TestResolve_Idempotent(t *testing.T) {
	agent, err := New(
		WithDynamicContext(2, &fakeIndex{items: itemsOf("a1", "a2")}),
		WithDynamicTools(1, &fakeIndex{items: itemsOf("search")}),
		WithTool(&fakeTool{name: "search"}),
		WithTool(&fakeTool{name: "calculator"}),
		WithStaticTools("calculator"),
	)
	require.NoError(t, err)

	first, err := agent.Resolve(context.Background(), Text("q"))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := agent.Resolve(context.Background(), Text("q"))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"a1", "a2"}, docIDs(first.Context))
	assert.Equal(t, []string{"calculator", "search"}, toolNames(first.Tools))
}

func TestResolve_StopsAtFirstFailure(t *testing.T) {
	toolIndex := &fakeIndex{items: itemsOf("search")}
	agent, err := New(
		WithDynamicContext(1, &fakeIndex{err: errors.New("down")}),
		WithDynamicTools(1, toolIndex),
	)
	require.NoError(t, err)

	res, err := agent.Resolve(context.Background(), Text("q"))
	assert.Nil(t, res)
	assert.True(t, IsCode(err, ErrCodeRetrieval))
	assert.Zero(t, toolIndex.callCount())
}

func TestFanOut_SequentialByDefault(t *testing.T) {
	tracker := &inFlight{}
	agent, err := New(
		WithDynamicContext(1, &fakeIndex{items: itemsOf("a"), delay: 5 * time.Millisecond, tracker: tracker}),
		WithDynamicContext(1, &fakeIndex{items: itemsOf("b"), delay: 5 * time.Millisecond, tracker: tracker}),
		WithDynamicContext(1, &fakeIndex{items: itemsOf("c"), delay: 5 * time.Millisecond, tracker: tracker}),
	)
	require.NoError(t, err)

	docs, err := agent.ResolveContext(context.Background(), Text("q"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, docIDs(docs))
	assert.Equal(t, 1, tracker.max)
}

func TestFanOut_ConcurrentKeepsSourceOrder(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(3)
	cfg := DefaultConfig()
	cfg.ConcurrentFanout = true
	agent, err := New(
		WithConfig(cfg),
		WithDynamicContext(2, &fakeIndex{items: itemsOf("a1", "a2"), barrier: &barrier, delay: 20 * time.Millisecond}),
		WithDynamicContext(1, &fakeIndex{items: itemsOf("b1"), barrier: &barrier}),
		WithDynamicContext(1, &fakeIndex{items: itemsOf("c1"), barrier: &barrier, delay: 5 * time.Millisecond}),
	)
	require.NoError(t, err)

	docs, err := agent.ResolveContext(context.Background(), Text("q"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1", "c1"}, docIDs(docs))
}

func TestFanOut_ConcurrentFailureDiscardsResults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConcurrentFanout = true
	storageErr := errors.New("boom")
	agent, err := New(
		WithConfig(cfg),
		WithDynamicContext(1, &fakeIndex{items: itemsOf("a1")}),
		WithDynamicContext(1, &fakeIndex{err: storageErr}),
	)
	require.NoError(t, err)

	docs, err := agent.ResolveContext(context.Background(), Text("q"))
	assert.Nil(t, docs)
	assert.True(t, IsCode(err, ErrCodeRetrieval))
	assert.ErrorIs(t, err, storageErr)
}

func TestResolveContext_CancelledContext(t *testing.T) {
	idx := &fakeIndex{items: itemsOf("a1")}
	agent, err := New(WithDynamicContext(1, idx))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docs, err := agent.ResolveContext(ctx, Text("q"))
	assert.Nil(t, docs)
	assert.True(t, IsCode(err, ErrCodeCancelled), "got %v", err)
	assert.Zero(t, idx.callCount())
}

func TestResolveTools_CancelledContext(t *testing.T) {
	calc := &fakeTool{name: "calculator"}
	toolIndex := &fakeIndex{items: itemsOf("calculator")}
	agent, err := New(WithTool(calc), WithStaticTools("calculator"), WithDynamicTools(1, toolIndex))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	defs, err := agent.ResolveTools(ctx, Text("q"))
	assert.Nil(t, defs)
	assert.True(t, IsCode(err, ErrCodeCancelled), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, toolIndex.callCount())
	assert.Empty(t, calc.prompts)
}

func TestResolve_ExpiredDeadline(t *testing.T) {
	ctxIndex := &fakeIndex{items: itemsOf("a1")}
	agent, err := New(WithDynamicContext(1, ctxIndex))
	require.NoError(t, err)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	res, err := agent.Resolve(ctx, Text("q"))
	assert.Nil(t, res)
	assert.True(t, IsCode(err, ErrCodeTimeout), "got %v", err)
	assert.Zero(t, ctxIndex.callCount())
}

func TestFanOut_ConcurrentCancelledContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConcurrentFanout = true
	a := &fakeIndex{items: itemsOf("a1")}
	b := &fakeIndex{items: itemsOf("b1")}
	agent, err := New(WithConfig(cfg), WithDynamicContext(1, a), WithDynamicContext(1, b))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docs, err := agent.ResolveContext(ctx, Text("q"))
	assert.Nil(t, docs)
	assert.True(t, IsCode(err, ErrCodeCancelled), "got %v", err)
	assert.Zero(t, a.callCount()+b.callCount())
}

func TestResolveContext_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResolveTimeout = 20 * time.Millisecond
	agent, err := New(WithConfig(cfg), WithDynamicContext(1, &fakeIndex{blockCtx: true}))
	require.NoError(t, err)

	docs, err := agent.ResolveContext(context.Background(), Text("q"))
	assert.Nil(t, docs)
	assert.True(t, IsCode(err, ErrCodeRetrieval))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_ValidatesSources(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero samples", []Option{WithDynamicContext(0, &fakeIndex{})}},
		{"negative samples", []Option{WithDynamicTools(-1, &fakeIndex{})}},
		{"nil index", []Option{WithDynamicContext(1, nil)}},
		{"negative timeout", []Option{WithConfig(Config{ResolveTimeout: -time.Second})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, err := New(tt.opts...)
			assert.Nil(t, agent)
			assert.True(t, IsCode(err, ErrCodeConfiguration), "got %v", err)
		})
	}
}

func TestResolveTools_PublishesMissingToolEvent(t *testing.T) {
	bus := eventbus.NewChannelEventBus(eventbus.WithBufferSize(16), eventbus.WithWorkerCount(1))
	defer bus.Close()

	missing := make(chan eventbus.Event, 1)
	_, err := bus.Subscribe([]eventbus.EventType{eventbus.EventToolMissing}, func(ctx context.Context, e eventbus.Event) error {
		missing <- e
		return nil
	})
	require.NoError(t, err)

	agent, err := New(
		WithEventBus(bus),
		WithDynamicTools(1, &fakeIndex{items: itemsOf("ghost")}),
	)
	require.NoError(t, err)

	defs, err := agent.ResolveTools(context.Background(), Text("q"))
	require.NoError(t, err)
	assert.Empty(t, defs)

	select {
	case e := <-missing:
		assert.Equal(t, "ghost", e.Payload())
		assert.Equal(t, passDynamic, e.Metadata()["pass"])
		assert.NotEmpty(t, e.Metadata()["resolution_id"])
	case <-time.After(time.Second):
		t.Fatal("missing tool event not published")
	}
}

func TestNew_OwnsDefaultEventBus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableEventBus = true
	agent, err := New(WithConfig(cfg))
	require.NoError(t, err)
	require.NotNil(t, agent.EventBus())
	require.NoError(t, agent.Close())

	_, err = agent.EventBus().SubscribeAll(func(context.Context, eventbus.Event) error { return nil })
	assert.Error(t, err, "bus should be closed with the agent")
}

func TestDocument_Genkit(t *testing.T) {
	doc := Document{ID: "a1", Text: "hello", AdditionalProps: map[string]string{"source": "faq"}}
	gdoc := doc.Genkit()
	require.Len(t, gdoc.Content, 1)
	assert.Equal(t, "hello", gdoc.Content[0].Text)
	assert.Equal(t, "a1", gdoc.Metadata["id"])
	assert.Equal(t, "faq", gdoc.Metadata["source"])
}
