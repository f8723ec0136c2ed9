package player

import (
	"fmt"
	"time"
)

// Backend selects how audio gets resolved and delivered.
const (
	BackendLocal    = "local"
	BackendLavalink = "lavalink"
)

// Config holds the player module configuration.
type Config struct {
	Backend string `env:"PLAYER_BACKEND" envDefault:"local"`

	LavalinkAddress  string `env:"LAVALINK_ADDRESS"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD"`

	ResolverWorkers     int64         `env:"RESOLVER_WORKERS" envDefault:"2"`
	IdleLeaveTimeout    time.Duration `env:"IDLE_LEAVE_TIMEOUT" envDefault:"5m"`
	EmptyChannelTimeout time.Duration `env:"EMPTY_CHANNEL_TIMEOUT" envDefault:"30s"`
	SearchMaxResults    int           `env:"SEARCH_MAX_RESULTS" envDefault:"10"`
}

// Validate checks cross-field constraints not expressible as env tags.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
	case BackendLavalink:
		if c.LavalinkAddress == "" || c.LavalinkPassword == "" {
			return fmt.Errorf("backend %q requires LAVALINK_ADDRESS and LAVALINK_PASSWORD", c.Backend)
		}
	default:
		return fmt.Errorf("unknown player backend %q", c.Backend)
	}

	if c.ResolverWorkers < 1 {
		return fmt.Errorf("RESOLVER_WORKERS must be at least 1, got %d", c.ResolverWorkers)
	}
	return nil
}
