package session

import (
	"context"
	"sync"
)

// task owns at most one background goroutine. Start cancels any previous run
// before launching the next, so timers and updaters never stack.
type task struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start cancels the previous run, if any, and launches fn in a fresh
// goroutine with a context derived from parent.
func (t *task) Start(parent context.Context, fn func(ctx context.Context)) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		fn(ctx)
	}()
}

// TryStart launches fn only when no run is active. It reports whether the
// run was started.
func (t *task) TryStart(parent context.Context, fn func(ctx context.Context)) bool {
	t.mu.Lock()
	if t.done != nil {
		select {
		case <-t.done:
		default:
			t.mu.Unlock()
			return false
		}
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		fn(ctx)
	}()
	return true
}

// Cancel stops the active run, if any. It does not wait for the goroutine
// to observe the cancellation.
func (t *task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// Active reports whether a run is currently live.
func (t *task) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
