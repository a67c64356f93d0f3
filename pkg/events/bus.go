// Package events carries coordinator lifecycle notifications to observers
// such as the terminal reporter and the metrics recorder.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Handlers run asynchronously; each
// subscriber sees events in publish order.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. A nil Bus discards it.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case BuildCompletedEvent:
		event.Publish(b.dispatcher, e)
	case ResourcesSettledEvent:
		event.Publish(b.dispatcher, e)
	case ProcessLaunchedEvent:
		event.Publish(b.dispatcher, e)
	case LaunchFailedEvent:
		event.Publish(b.dispatcher, e)
	case TerminationRequestedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessExitedEvent:
		event.Publish(b.dispatcher, e)
	case StateChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type it accepts and returns an
// unsubscribe function. Unknown handler types get a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(BuildCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ResourcesSettledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessLaunchedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LaunchFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TerminationRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
