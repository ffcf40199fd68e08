package dragonscale

import "github.com/ZanzyTHEbar/dragonscale-rag/internal/eventbus"

// WithEventBus sets the event bus receiving resolution events.
// The caller keeps ownership and closes it.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(a *Agent) {
		a.eventBus = bus
	}
}
