package events

import "listingchain/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Typed is implemented by events that render their canonical payload.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload returns the canonical payload of evt, or nil when the event does not
// carry one.
func Payload(evt Event) *types.Event {
	typed, ok := evt.(Typed)
	if !ok {
		return nil
	}
	return typed.Event()
}

// Multi fans every event out to each non-nil emitter in order.
func Multi(emitters ...Emitter) Emitter {
	filtered := make(multiEmitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

type multiEmitter []Emitter

func (m multiEmitter) Emit(evt Event) {
	for _, e := range m {
		e.Emit(evt)
	}
}

// Published wraps an already-rendered payload, typically one that has been
// stamped with its sequence number by the ledger.
type Published struct {
	Payload *types.Event
}

func (p Published) EventType() string {
	if p.Payload == nil {
		return ""
	}
	return p.Payload.Type
}

func (p Published) Event() *types.Event { return p.Payload }
