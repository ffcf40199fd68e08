package dragonscale

import (
	"context"

	"github.com/ZanzyTHEbar/dragonscale-rag/internal/eventbus"
	"github.com/ZanzyTHEbar/dragonscale-rag/internal/logger"
)

// Tool resolution passes.
const (
	passStatic  = "static"
	passDynamic = "dynamic"
)

// publish sends an event when a bus is configured. Publishing failures are
// logged and never affect the resolution.
func (a *Agent) publish(ctx context.Context, eventType eventbus.EventType, payload any, metadata map[string]any) {
	if a.eventBus == nil {
		return
	}
	event := eventbus.NewEvent(eventType, payload, "Agent."+a.name, metadata)
	if err := a.eventBus.Publish(ctx, event); err != nil {
		a.logger(ctx).Debug("Event publish failed", "event_type", eventType, "error", err)
	}
}

// warnMissingTool reports a tool name or identifier without implementation.
func (a *Agent) warnMissingTool(ctx context.Context, resolutionID, pass, name string) {
	a.logger(ctx).Warn("Tool implementation not found in toolset",
		"tool", name,
		"pass", pass,
		"agent", a.name,
		"resolution_id", resolutionID,
	)
	a.publish(ctx, eventbus.EventToolMissing, name, map[string]any{
		"pass":          pass,
		"agent":         a.name,
		"resolution_id": resolutionID,
	})
}

func (a *Agent) logger(ctx context.Context) logger.Logger {
	return logger.FromContext(ctx, a.log)
}
