package presentation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/harunon/kanade/internal/bot"
	"github.com/harunon/kanade/internal/modules/library/domain"
	"github.com/harunon/kanade/internal/modules/library/infrastructure"
	playerdomain "github.com/harunon/kanade/internal/modules/player/domain"
	playerports "github.com/harunon/kanade/internal/modules/player/ports"
	playersession "github.com/harunon/kanade/internal/modules/player/session"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

const (
	commandTimeout = 5 * time.Second
	resolveTimeout = 60 * time.Second
	showPageLimit  = 20
)

// PlayerBridge is the slice of the player module the library needs: live
// sessions for /playlist play and a resolver for /playlist add.
type PlayerBridge interface {
	Registry() *playersession.Registry
	Resolver() playerports.StreamResolver
}

// Handlers translates the playlist and profile commands into store and
// session operations.
type Handlers struct {
	store  *infrastructure.Store
	player PlayerBridge
}

// NewHandlers creates the command handlers.
func NewHandlers(store *infrastructure.Store, player PlayerBridge) *Handlers {
	return &Handlers{store: store, player: player}
}

// HandlePlaylist handles the /playlist subcommands.
func (h *Handlers) HandlePlaylist(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Missing subcommand.")
	}
	sub := options[0]

	name := stringOptionValue(sub.Options, "name")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch sub.Name {
	case "create":
		if err := h.store.CreatePlaylist(ctx, guildID, name); err != nil {
			return respondError(r, friendlyError(err))
		}
		return respondSuccess(r, fmt.Sprintf("Created playlist **%s**.", name))

	case "delete":
		if err := h.store.DeletePlaylist(ctx, guildID, name); err != nil {
			return respondError(r, friendlyError(err))
		}
		return respondSuccess(r, fmt.Sprintf("Deleted playlist **%s**.", name))

	case "rename":
		newName := stringOptionValue(sub.Options, "new-name")
		if err := h.store.RenamePlaylist(ctx, guildID, name, newName); err != nil {
			return respondError(r, friendlyError(err))
		}
		return respondSuccess(r, fmt.Sprintf("Renamed **%s** to **%s**.", name, newName))

	case "add":
		return h.handleAdd(guildID, name, stringOptionValue(sub.Options, "query"), r)

	case "remove":
		position := intOptionValue(sub.Options, "position")
		track, err := h.store.RemoveTrack(ctx, guildID, name, position)
		if err != nil {
			return respondError(r, friendlyError(err))
		}
		return respondSuccess(r, fmt.Sprintf("Removed **%s** from **%s**.", track.Title, name))

	case "move":
		from := intOptionValue(sub.Options, "from")
		to := intOptionValue(sub.Options, "to")
		if err := h.store.MoveTrack(ctx, guildID, name, from, to); err != nil {
			return respondError(r, friendlyError(err))
		}
		return respondSuccess(r, fmt.Sprintf("Moved track %d to position %d in **%s**.", from, to, name))

	case "list":
		return h.respondPlaylistList(ctx, guildID, r)

	case "show":
		return h.respondPlaylistShow(ctx, guildID, name, r)

	case "play":
		return h.handlePlay(ctx, guildID, i, name, r)

	default:
		return respondError(r, "Unknown subcommand.")
	}
}

// HandleProfile handles the /profile subcommands.
func (h *Handlers) HandleProfile(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Missing subcommand.")
	}
	sub := options[0]

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch sub.Name {
	case "volume":
		percent := intOptionValue(sub.Options, "percent")
		if percent < 0 || percent > 200 {
			return respondError(r, "Volume must be between 0 and 200.")
		}
		if err := h.store.SetVolume(ctx, guildID, percent); err != nil {
			return respondError(r, friendlyError(err))
		}
		h.applyLiveVolume(guildID, percent)
		return respondSuccess(r, fmt.Sprintf("Default volume set to %d%%.", percent))

	case "eq":
		profile := playerdomain.ParseEQProfile(stringOptionValue(sub.Options, "profile"))
		if err := h.store.SetEQProfile(ctx, guildID, profile.String()); err != nil {
			return respondError(r, friendlyError(err))
		}
		if sess, ok := h.player.Registry().Get(guildID); ok {
			sess.SetEQProfile(profile)
		}
		return respondSuccess(r, fmt.Sprintf("Default equalizer set to **%s**.", profile))

	case "show":
		profile, err := h.store.Profile(ctx, guildID)
		if err != nil {
			return respondError(r, friendlyError(err))
		}
		if profile == nil {
			return respondSuccess(r, "No defaults stored. Volume 100% and the balanced equalizer apply.")
		}
		return respondSuccess(r, fmt.Sprintf("Default volume: %d%%\nDefault equalizer: **%s**",
			profile.VolumePercent, profile.EQProfile))

	default:
		return respondError(r, "Unknown subcommand.")
	}
}

// handleAdd resolves the query to a single track and stores it. Resolution
// can take a while, so it gets its own timeout.
func (h *Handlers) handleAdd(guildID snowflake.ID, name, query string, r bot.Responder) error {
	if strings.TrimSpace(query) == "" {
		return respondError(r, "Tell me what to add.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	result, err := h.player.Resolver().Resolve(ctx, query, false)
	if err != nil {
		return respondError(r, friendlyError(err))
	}
	if result.Track == nil {
		return respondError(r, "No results for: "+query)
	}

	err = h.store.AddTrack(ctx, guildID, name, domain.PlaylistTrack{
		Title:   result.Track.Title,
		PageURL: result.Track.PageURL,
	})
	if err != nil {
		return respondError(r, friendlyError(err))
	}
	return respondSuccess(r, fmt.Sprintf("Added **%s** to **%s**.", result.Track.Title, name))
}

// handlePlay queues every saved track onto the guild's live session.
func (h *Handlers) handlePlay(ctx context.Context, guildID snowflake.ID, i *discordgo.InteractionCreate, name string, r bot.Responder) error {
	tracks, err := h.store.ListTracks(ctx, guildID, name)
	if err != nil {
		return respondError(r, friendlyError(err))
	}
	if len(tracks) == 0 {
		return respondError(r, fmt.Sprintf("Playlist **%s** is empty.", name))
	}

	sess, ok := h.player.Registry().Get(guildID)
	if !ok || !sess.Connected() {
		return respondError(r, "I'm not in a voice channel. Use /join first.")
	}
	if textChannelID, err := snowflake.Parse(i.ChannelID); err == nil {
		sess.BindTextChannel(textChannelID)
	}

	entries := make([]playerports.PlaylistEntry, len(tracks))
	for idx, track := range tracks {
		entries[idx] = playerports.PlaylistEntry{PageURL: track.PageURL, Title: track.Title}
	}

	requester := playersession.Requester{}
	if i.Member != nil && i.Member.User != nil {
		if id, err := snowflake.Parse(i.Member.User.ID); err == nil {
			requester.ID = id
		}
		requester.Name = i.Member.User.Username
	}

	if err := sess.EnqueueMany(entries, requester); err != nil {
		return respondError(r, friendlyError(err))
	}
	return respondSuccess(r, fmt.Sprintf("Queueing %d tracks from **%s**.", len(entries), name))
}

func (h *Handlers) respondPlaylistList(ctx context.Context, guildID snowflake.ID, r bot.Responder) error {
	playlists, err := h.store.ListPlaylists(ctx, guildID)
	if err != nil {
		return respondError(r, friendlyError(err))
	}
	if len(playlists) == 0 {
		return respondSuccess(r, "No playlists yet. Create one with /playlist create.")
	}

	var sb strings.Builder
	for _, p := range playlists {
		fmt.Fprintf(&sb, "**%s** - %d tracks\n", p.Name, p.TrackCount)
	}
	return respondSuccess(r, sb.String())
}

func (h *Handlers) respondPlaylistShow(ctx context.Context, guildID snowflake.ID, name string, r bot.Responder) error {
	tracks, err := h.store.ListTracks(ctx, guildID, name)
	if err != nil {
		return respondError(r, friendlyError(err))
	}
	if len(tracks) == 0 {
		return respondSuccess(r, fmt.Sprintf("Playlist **%s** is empty.", name))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", name)
	for idx, track := range tracks {
		if idx == showPageLimit {
			fmt.Fprintf(&sb, "...and %d more", len(tracks)-showPageLimit)
			break
		}
		fmt.Fprintf(&sb, "%d\\. [%s](%s)\n", track.Position, track.Title, track.PageURL)
	}
	return respondSuccess(r, sb.String())
}

// applyLiveVolume updates a running session so the stored default takes
// effect immediately.
func (h *Handlers) applyLiveVolume(guildID snowflake.ID, percent int) {
	if sess, ok := h.player.Registry().Get(guildID); ok {
		_ = sess.SetVolume(percent)
	}
}

func stringOptionValue(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range opts {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

func intOptionValue(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	for _, opt := range opts {
		if opt.Name == name {
			return int(opt.IntValue())
		}
	}
	return 0
}

// friendlyError maps storage and session errors to user-facing messages.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, domain.ErrPlaylistNotFound):
		return "No playlist with that name."
	case errors.Is(err, domain.ErrPlaylistExists):
		return "A playlist with that name already exists."
	case errors.Is(err, domain.ErrTrackNotFound):
		return "That position does not exist in the playlist."
	case errors.Is(err, playersession.ErrIngestBusy):
		return "I'm still adding another playlist. Try again in a moment."
	case errors.Is(err, playersession.ErrTerminated):
		return "That session has ended. Use /join to start a new one."
	default:
		return err.Error()
	}
}

// Response helpers.

func respondSuccess(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
		},
	})
}
