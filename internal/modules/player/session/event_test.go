package session

import (
	"context"
	"testing"
	"time"
)

func TestEvent_SetUnblocksWaiter(t *testing.T) {
	e := NewEvent()

	select {
	case <-e.Done():
		t.Fatal("new event must not be set")
	default:
	}

	e.Set()

	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("Set() did not unblock waiter")
	}
	if !e.IsSet() {
		t.Error("IsSet() = false after Set()")
	}
}

func TestEvent_SetIsIdempotent(t *testing.T) {
	e := NewEvent()
	e.Set()
	e.Set()
	if !e.IsSet() {
		t.Error("IsSet() = false after double Set()")
	}
}

func TestEvent_ClearRearms(t *testing.T) {
	e := NewEvent()
	e.Set()
	e.Clear()
	if e.IsSet() {
		t.Error("IsSet() = true after Clear()")
	}

	e.Set()
	if !e.IsSet() {
		t.Error("event did not re-arm after Clear()")
	}
}

func TestEvent_ClearWhenUnsetIsNoop(t *testing.T) {
	e := NewEvent()
	ch := e.Done()
	e.Clear()
	if e.Done() != ch {
		t.Error("Clear() on an unset event replaced the channel")
	}
}

func TestTask_StartReplacesPreviousRun(t *testing.T) {
	var tk task

	firstCancelled := make(chan struct{})
	tk.Start(context.Background(), func(ctx context.Context) {
		<-ctx.Done()
		close(firstCancelled)
	})

	done := make(chan struct{})
	tk.Start(context.Background(), func(ctx context.Context) {
		close(done)
	})

	select {
	case <-firstCancelled:
	case <-time.After(time.Second):
		t.Fatal("starting a new run did not cancel the previous one")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second run never executed")
	}
}

func TestTask_TryStartSingleFlight(t *testing.T) {
	var tk task

	release := make(chan struct{})
	if ok := tk.TryStart(context.Background(), func(ctx context.Context) {
		<-release
	}); !ok {
		t.Fatal("first TryStart() = false, want true")
	}

	if ok := tk.TryStart(context.Background(), func(ctx context.Context) {}); ok {
		t.Error("second TryStart() = true while first run is live, want false")
	}
	if !tk.Active() {
		t.Error("Active() = false while run is live")
	}

	close(release)
	deadline := time.Now().Add(time.Second)
	for tk.Active() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if ok := tk.TryStart(context.Background(), func(ctx context.Context) {}); !ok {
		t.Error("TryStart() = false after previous run finished, want true")
	}
}

func TestTask_CancelStopsRun(t *testing.T) {
	var tk task

	stopped := make(chan struct{})
	tk.Start(context.Background(), func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})
	tk.Cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Cancel() did not stop the run")
	}
}
