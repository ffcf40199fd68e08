package dragonscale

import (
	"context"
	"errors"
	"time"

	"github.com/ZanzyTHEbar/dragonscale-rag/internal/eventbus"
	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// ResolveContext retrieves the context documents for prompt from every
// dynamic context source. Documents are ordered by source, then by the rank
// each index returned. Any failing source fails the whole call.
func (a *Agent) ResolveContext(ctx context.Context, prompt Prompt) ([]Document, error) {
	text, ok := ragText(prompt)
	if !ok {
		return nil, NewInvalidPromptError(StageContext)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resolutionID := uuid.NewString()
	start := time.Now()
	a.publish(ctx, eventbus.EventContextResolutionStarted, text, map[string]any{
		"resolution_id": resolutionID,
		"sources":       len(a.dynamicContext),
	})

	items, err := fanOut(ctx, StageContext, a.dynamicContext, a.config.ConcurrentFanout, topN(text))
	if err != nil {
		a.fail(ctx, eventbus.EventContextResolutionFailure, resolutionID, start, err)
		return nil, err
	}

	docs := make([]Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, Document{
			ID:              item.ID,
			Text:            renderPayload(item.Payload),
			AdditionalProps: map[string]string{},
		})
	}

	a.logger(ctx).Debug("Context resolution complete",
		"agent", a.name,
		"resolution_id", resolutionID,
		"documents", len(docs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	a.publish(ctx, eventbus.EventContextResolutionSuccess, len(docs), map[string]any{
		"resolution_id": resolutionID,
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	return docs, nil
}

// ResolveTools returns the definitions of the static tools, in list order,
// followed by the definitions of the tools retrieved from the dynamic tool
// sources. Names without an implementation are reported and skipped; only a
// failing source query or a failing definition aborts the call.
func (a *Agent) ResolveTools(ctx context.Context, prompt Prompt) ([]*ai.ToolDefinition, error) {
	text, ok := ragText(prompt)
	if !ok {
		return nil, NewInvalidPromptError(StageTools)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resolutionID := uuid.NewString()
	start := time.Now()
	a.publish(ctx, eventbus.EventToolResolutionStarted, text, map[string]any{
		"resolution_id": resolutionID,
		"static_tools":  len(a.staticTools),
		"sources":       len(a.dynamicTools),
	})

	defs := make([]*ai.ToolDefinition, 0, len(a.staticTools))
	for _, name := range a.staticTools {
		if err := ctx.Err(); err != nil {
			err = contextError(StageTools, err)
			a.fail(ctx, eventbus.EventToolResolutionFailure, resolutionID, start, err)
			return nil, err
		}
		def, found, err := a.definition(ctx, name, text)
		if err != nil {
			a.fail(ctx, eventbus.EventToolResolutionFailure, resolutionID, start, err)
			return nil, err
		}
		if !found {
			a.warnMissingTool(ctx, resolutionID, passStatic, name)
			continue
		}
		defs = append(defs, def)
	}
	staticCount := len(defs)

	ids, err := fanOut(ctx, StageTools, a.dynamicTools, a.config.ConcurrentFanout, topNIDs(text))
	if err != nil {
		a.fail(ctx, eventbus.EventToolResolutionFailure, resolutionID, start, err)
		return nil, err
	}
	for _, id := range ids {
		def, found, err := a.definition(ctx, id.ID, text)
		if err != nil {
			a.fail(ctx, eventbus.EventToolResolutionFailure, resolutionID, start, err)
			return nil, err
		}
		if !found {
			a.warnMissingTool(ctx, resolutionID, passDynamic, id.ID)
			continue
		}
		defs = append(defs, def)
	}

	a.logger(ctx).Debug("Tool resolution complete",
		"agent", a.name,
		"resolution_id", resolutionID,
		"static", staticCount,
		"dynamic", len(defs)-staticCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	a.publish(ctx, eventbus.EventToolResolutionSuccess, len(defs), map[string]any{
		"resolution_id": resolutionID,
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	return defs, nil
}

// Resolve runs ResolveContext then ResolveTools and returns the first error.
func (a *Agent) Resolve(ctx context.Context, prompt Prompt) (*Resolution, error) {
	docs, err := a.ResolveContext(ctx, prompt)
	if err != nil {
		return nil, err
	}
	defs, err := a.ResolveTools(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &Resolution{Context: docs, Tools: defs}, nil
}

// definition looks name up and asks the tool for its definition.
func (a *Agent) definition(ctx context.Context, name, text string) (*ai.ToolDefinition, bool, error) {
	tool, ok := a.tools.Get(name)
	if !ok {
		return nil, false, nil
	}
	def, err := tool.Definition(ctx, text)
	if err != nil {
		return nil, true, NewToolDefinitionError(StageTools, name, err)
	}
	if def == nil {
		return nil, true, NewToolDefinitionError(StageTools, name, errors.New("tool returned no definition"))
	}
	return def, true, nil
}

func (a *Agent) fail(ctx context.Context, eventType eventbus.EventType, resolutionID string, start time.Time, err error) {
	a.logger(ctx).Error("Resolution failed",
		"agent", a.name,
		"resolution_id", resolutionID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	a.publish(context.WithoutCancel(ctx), eventType, err.Error(), map[string]any{
		"resolution_id": resolutionID,
	})
}

func (a *Agent) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.ResolveTimeout > 0 {
		return context.WithTimeout(ctx, a.config.ResolveTimeout)
	}
	return context.WithCancel(ctx)
}

func ragText(prompt Prompt) (string, bool) {
	if prompt == nil {
		return "", false
	}
	return prompt.RAGText()
}
