package library

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"

	"github.com/harunon/kanade/internal/bot"
	"github.com/harunon/kanade/internal/modules/library/infrastructure"
	"github.com/harunon/kanade/internal/modules/library/presentation"
	playerdomain "github.com/harunon/kanade/internal/modules/player/domain"
	playerpres "github.com/harunon/kanade/internal/modules/player/presentation"
)

const profileLookupTimeout = 3 * time.Second

func init() {
	bot.Register(&Module{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*Module)(nil)

// playerModule is the surface the library needs from the player module.
type playerModule interface {
	presentation.PlayerBridge
	SetSessionDefaults(playerpres.SessionDefaults)
}

// Module provides persistent playlists and per-guild playback defaults.
type Module struct {
	config   *Config
	store    *infrastructure.Store
	handlers *presentation.Handlers
}

// Name returns the module name.
func (m *Module) Name() string {
	return "library"
}

// Commands returns the slash commands for this module.
func (m *Module) Commands() []*discordgo.ApplicationCommand {
	return presentation.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *Module) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"playlist": m.handlers.HandlePlaylist,
		"profile":  m.handlers.HandleProfile,
	}
}

// EventHandlers returns the gateway event handlers for this module.
func (m *Module) EventHandlers() []bot.EventHandler {
	return nil
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *Module) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init opens the database and binds to the player module.
func (m *Module) Init(deps bot.ModuleDependencies) error {
	store, err := infrastructure.OpenStore(m.config.DatabasePath)
	if err != nil {
		return err
	}
	m.store = store

	player, err := findPlayerModule()
	if err != nil {
		return err
	}

	m.handlers = presentation.NewHandlers(store, player)

	// Stored profiles become the starting volume and EQ of every new voice
	// connection.
	player.SetSessionDefaults(func(guildID snowflake.ID) (int, playerdomain.EQProfile, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), profileLookupTimeout)
		defer cancel()

		profile, err := store.Profile(ctx, guildID)
		if err != nil {
			slog.Warn("failed to load guild profile", "guild_id", guildID, "error", err)
			return 0, playerdomain.EQBalanced, false
		}
		if profile == nil {
			return 0, playerdomain.EQBalanced, false
		}
		return profile.VolumePercent, playerdomain.ParseEQProfile(profile.EQProfile), true
	})

	slog.Info("library module initialized", "database", m.config.DatabasePath)
	return nil
}

// Shutdown closes the database.
func (m *Module) Shutdown() error {
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

func findPlayerModule() (playerModule, error) {
	for _, mod := range bot.Modules() {
		if player, ok := mod.(playerModule); ok {
			return player, nil
		}
	}
	return nil, errors.New("library module requires the player module")
}
