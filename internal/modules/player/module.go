package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"

	"github.com/harunon/kanade/internal/bot"
	"github.com/harunon/kanade/internal/modules/player/infrastructure"
	"github.com/harunon/kanade/internal/modules/player/ports"
	"github.com/harunon/kanade/internal/modules/player/presentation"
	"github.com/harunon/kanade/internal/modules/player/session"
)

const shutdownTimeout = 10 * time.Second

func init() {
	bot.Register(&Module{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*Module)(nil)

// Module provides audio playback commands.
type Module struct {
	config   *Config
	session  *discordgo.Session
	registry *session.Registry
	resolver ports.StreamResolver
	handlers *presentation.Handlers
	lavalink *infrastructure.LavalinkBackend

	defaultsMu sync.RWMutex
	defaults   presentation.SessionDefaults
}

// Name returns the module name.
func (m *Module) Name() string {
	return "player"
}

// Commands returns the slash commands for this module.
func (m *Module) Commands() []*discordgo.ApplicationCommand {
	return presentation.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *Module) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"join":     m.handlers.HandleJoin,
		"leave":    m.handlers.HandleLeave,
		"play":     m.handlers.HandlePlay,
		"stop":     m.handlers.HandleStop,
		"pause":    m.handlers.HandlePause,
		"resume":   m.handlers.HandleResume,
		"skip":     m.handlers.HandleSkip,
		"previous": m.handlers.HandlePrevious,
		"queue":    m.handlers.HandleQueue,
		"volume":   m.handlers.HandleVolume,
		"loop":     m.handlers.HandleLoop,
		"eq":       m.handlers.HandleEQ,
	}
}

// EventHandlers returns the gateway event handlers for this module.
func (m *Module) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			m.handleVoiceServerUpdate(s, event)
		},
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.handleVoiceStateUpdate(s, event)
		},
		func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			m.handleInteractionCreate(s, i)
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *Module) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module. The Lavalink backend needs a live gateway
// session; without one the module falls back to the local pipeline so it can
// still load in tests.
func (m *Module) Init(deps bot.ModuleDependencies) error {
	m.session = deps.Session

	var (
		resolver  ports.StreamResolver
		transport ports.VoiceTransport
	)

	if m.config.Backend == BackendLavalink && deps.Session != nil {
		backend, err := infrastructure.NewLavalinkBackend(deps.Session, infrastructure.LavalinkConfig{
			Address:  m.config.LavalinkAddress,
			Password: m.config.LavalinkPassword,
		})
		if err != nil {
			return err
		}
		m.lavalink = backend
		resolver = backend
		transport = backend
	} else {
		if m.config.Backend == BackendLavalink {
			slog.Warn("player module initialized without session, falling back to local backend")
		}
		resolver = infrastructure.NewYtdlpResolver(m.config.ResolverWorkers)
		transport = infrastructure.NewDiscordVoiceTransport(deps.Session)
	}

	m.resolver = resolver
	notifier := infrastructure.NewDiscordNotifier(deps.Session)

	opts := session.Options{
		IdleLeaveTimeout:    m.config.IdleLeaveTimeout,
		EmptyChannelTimeout: m.config.EmptyChannelTimeout,
	}
	m.registry = session.NewRegistry(func(guildID snowflake.ID) *session.Session {
		return session.New(guildID, resolver, notifier, opts)
	})

	m.handlers = presentation.NewHandlers(
		m.registry,
		resolver,
		transport,
		m.sessionDefaults,
		m.config.SearchMaxResults,
	)

	slog.Info("player module initialized", "backend", m.config.Backend)
	return nil
}

// Shutdown tears down every live session and the backend.
func (m *Module) Shutdown() error {
	if m.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		m.registry.Shutdown(ctx)
	}

	if m.lavalink != nil {
		m.lavalink.Close()
	}
	return nil
}

// Registry exposes the session registry to other modules.
func (m *Module) Registry() *session.Registry {
	return m.registry
}

// Resolver exposes the active stream resolver to other modules.
func (m *Module) Resolver() ports.StreamResolver {
	return m.resolver
}

// SetSessionDefaults installs a provider for per-guild playback defaults,
// applied whenever a session joins a voice channel.
func (m *Module) SetSessionDefaults(fn presentation.SessionDefaults) {
	m.defaultsMu.Lock()
	defer m.defaultsMu.Unlock()
	m.defaults = fn
}

func (m *Module) sessionDefaults() presentation.SessionDefaults {
	m.defaultsMu.RLock()
	defer m.defaultsMu.RUnlock()
	return m.defaults
}

// Event handlers.

func (m *Module) handleVoiceServerUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceServerUpdate,
) {
	if m.lavalink != nil {
		m.lavalink.OnVoiceServerUpdate(event)
	}
}

func (m *Module) handleVoiceStateUpdate(
	s *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	if m.lavalink != nil {
		m.lavalink.OnVoiceStateUpdate(event)
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		return
	}
	sess, ok := m.registry.Get(guildID)
	if !ok || !sess.Connected() {
		return
	}

	sess.NotifyChannelOccupancy(m.countListeners(s, event.GuildID, sess.VoiceChannelID()))
}

// countListeners counts non-bot members in the given voice channel.
func (m *Module) countListeners(s *discordgo.Session, guildID string, channelID snowflake.ID) int {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return 0
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID.String() {
			continue
		}
		member, err := s.State.Member(guildID, vs.UserID)
		if err != nil || member.User == nil || member.User.Bot {
			continue
		}
		count++
	}
	return count
}

func (m *Module) handleInteractionCreate(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	if i.Type != discordgo.InteractionApplicationCommandAutocomplete {
		return
	}
	m.handlers.HandleAutocomplete(s, i)
}
