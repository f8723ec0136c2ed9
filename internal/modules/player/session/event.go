package session

import "sync"

// Event is a one-shot, level-triggered signal. Set marks it signaled and
// unblocks every waiter; Clear re-arms it. Setting an already-set event or
// clearing an unset one is a no-op, so producers never need to know the
// consumer's phase.
type Event struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewEvent returns an unset event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set marks the event signaled.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
	default:
		close(e.ch)
	}
}

// Clear re-arms the event. Waiters already parked on a previous Done channel
// still observe the earlier Set.
func (e *Event) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
		e.ch = make(chan struct{})
	default:
	}
}

// Done returns a channel closed once the event is set.
func (e *Event) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}

// IsSet reports whether the event is currently signaled.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
		return true
	default:
		return false
	}
}
