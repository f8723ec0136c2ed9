package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

func newTestRegistry() (*Registry, *fakeResolver, *fakeNotifier) {
	resolver := newFakeResolver()
	notifier := &fakeNotifier{}
	registry := NewRegistry(func(guildID snowflake.ID) *Session {
		return New(guildID, resolver, notifier, testOptions())
	})
	return registry, resolver, notifier
}

func TestRegistry_GetOrCreateReturnsSameSession(t *testing.T) {
	registry, _, _ := newTestRegistry()
	defer shutdownRegistry(t, registry)

	first := registry.GetOrCreate(1)
	second := registry.GetOrCreate(1)
	if first != second {
		t.Error("GetOrCreate() returned a different session for the same guild")
	}

	other := registry.GetOrCreate(2)
	if other == first {
		t.Error("GetOrCreate() shared a session across guilds")
	}
	if got := registry.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestRegistry_GetWithoutSession(t *testing.T) {
	registry, _, _ := newTestRegistry()

	if _, ok := registry.Get(1); ok {
		t.Error("Get() = ok for a guild with no session")
	}
}

func TestRegistry_RemovesTerminatedSession(t *testing.T) {
	registry, _, _ := newTestRegistry()
	defer shutdownRegistry(t, registry)

	var terminated atomic.Int32
	registry.SetOnSessionTerminated(func(s *Session) {
		terminated.Add(1)
	})

	s := registry.GetOrCreate(1)
	s.Cleanup()

	waitFor(t, "session removal", func() bool {
		_, ok := registry.Get(1)
		return !ok
	})
	waitFor(t, "termination callback", func() bool { return terminated.Load() == 1 })

	// A later lookup yields a fresh session.
	if fresh := registry.GetOrCreate(1); fresh == s {
		t.Error("GetOrCreate() returned the terminated session")
	}
}

func TestRegistry_ShutdownTerminatesAll(t *testing.T) {
	registry, _, _ := newTestRegistry()

	sessions := []*Session{
		registry.GetOrCreate(1),
		registry.GetOrCreate(2),
		registry.GetOrCreate(3),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	registry.Shutdown(ctx)

	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatalf("session %d did not terminate on shutdown", s.GuildID())
		}
	}
}

func shutdownRegistry(t *testing.T, registry *Registry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	registry.Shutdown(ctx)
}
