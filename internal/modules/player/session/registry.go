package session

import (
	"context"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// Factory builds a session for a guild. The registry starts the session and
// watches it; the factory only wires dependencies.
type Factory func(guildID snowflake.ID) *Session

// Registry holds at most one live session per guild. Creation is
// single-flight per guild, and a watcher removes each session from the map
// the moment it terminates, so a later lookup always yields a fresh session.
type Registry struct {
	mu           sync.Mutex
	sessions     map[snowflake.ID]*Session
	factory      Factory
	onTerminated func(*Session)
}

// NewRegistry creates a registry that builds sessions with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		sessions: make(map[snowflake.ID]*Session),
		factory:  factory,
	}
}

// SetOnSessionTerminated registers a callback invoked exactly once per
// session, after the session has been removed from the registry.
func (r *Registry) SetOnSessionTerminated(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTerminated = fn
}

// GetOrCreate returns the guild's live session, creating and starting one
// when none exists.
func (r *Registry) GetOrCreate(guildID snowflake.ID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok {
		return s
	}

	s := r.factory(guildID)
	r.sessions[guildID] = s
	s.Start()
	go r.watch(s)
	return s
}

// Get returns the guild's live session, if any.
func (r *Registry) Get(guildID snowflake.ID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of all live sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	return result
}

func (r *Registry) watch(s *Session) {
	<-s.Done()

	r.mu.Lock()
	if cur, ok := r.sessions[s.GuildID()]; ok && cur == s {
		delete(r.sessions, s.GuildID())
	}
	fn := r.onTerminated
	r.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// Shutdown tears down every live session and waits for each to terminate or
// for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) {
	sessions := r.Sessions()
	for _, s := range sessions {
		s.Cleanup()
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return
		}
	}
}
