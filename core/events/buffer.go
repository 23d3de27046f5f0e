package events

import "sync"

// Buffer holds events emitted during a call until the ledger decides whether
// the call commits. Drain hands them over; Reset drops them.
type Buffer struct {
	mu      sync.Mutex
	pending []Event
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Emit implements Emitter.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, evt)
	b.mu.Unlock()
}

// Len reports the number of pending events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Drain returns the pending events in emission order and empties the buffer.
func (b *Buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// Reset discards every pending event.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.pending = nil
	b.mu.Unlock()
}
