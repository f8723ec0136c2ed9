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
	"github.com/harunon/kanade/internal/modules/player/domain"
	"github.com/harunon/kanade/internal/modules/player/ports"
	"github.com/harunon/kanade/internal/modules/player/session"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

const (
	joinTimeout    = 15 * time.Second
	queuePageSize  = 10
	maxQueueTitles = 80
)

// SessionDefaults returns stored per-guild playback defaults, if any.
type SessionDefaults func(guildID snowflake.ID) (volumePercent int, profile domain.EQProfile, ok bool)

// Handlers translates slash commands into session operations.
type Handlers struct {
	registry  *session.Registry
	resolver  ports.StreamResolver
	transport ports.VoiceTransport
	defaults  func() SessionDefaults
	searchMax int
}

// NewHandlers creates the command handlers. defaults is read lazily so other
// modules can install a provider after initialization.
func NewHandlers(
	registry *session.Registry,
	resolver ports.StreamResolver,
	transport ports.VoiceTransport,
	defaults func() SessionDefaults,
	searchMax int,
) *Handlers {
	return &Handlers{
		registry:  registry,
		resolver:  resolver,
		transport: transport,
		defaults:  defaults,
		searchMax: searchMax,
	}
}

// HandleJoin handles the /join command.
func (h *Handlers) HandleJoin(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	var explicit snowflake.ID
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "channel" {
			id, err := snowflake.Parse(opt.ChannelValue(s).ID)
			if err != nil {
				return respondError(r, "Invalid voice channel.")
			}
			explicit = id
		}
	}

	sess, err := h.ensureJoined(s, i, explicit)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	return respondSuccess(r, fmt.Sprintf("Joined <#%s>.", sess.VoiceChannelID()))
}

// HandleLeave handles the /leave command.
func (h *Handlers) HandleLeave(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	sess.Cleanup()
	return respondSuccess(r, "Left the voice channel.")
}

// HandlePlay handles the /play command. Resolution happens in the
// background; the immediate response only acknowledges the request.
func (h *Handlers) HandlePlay(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	if strings.TrimSpace(query) == "" {
		return respondError(r, "Tell me what to play.")
	}

	sess, err := h.ensureJoined(s, i, 0)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	requester := session.Requester{}
	if i.Member != nil && i.Member.User != nil {
		if id, err := snowflake.Parse(i.Member.User.ID); err == nil {
			requester.ID = id
		}
		requester.Name = i.Member.User.Username
	}

	if err := sess.Enqueue(query, true, requester); err != nil {
		return respondError(r, friendlyError(err))
	}
	return respondSuccess(r, fmt.Sprintf("Looking up **%s**...", query))
}

// HandleStop handles the /stop command.
func (h *Handlers) HandleStop(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	if err := sess.Stop(); err != nil {
		return respondError(r, friendlyError(err))
	}
	return respondSuccess(r, "Stopped playback and cleared the queue.")
}

// HandlePause handles the /pause command.
func (h *Handlers) HandlePause(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	if err := sess.Pause(); err != nil {
		return respondError(r, friendlyError(err))
	}
	return respondSuccess(r, "Paused.")
}

// HandleResume handles the /resume command.
func (h *Handlers) HandleResume(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	if err := sess.Resume(); err != nil {
		return respondError(r, friendlyError(err))
	}
	return respondSuccess(r, "Resumed.")
}

// HandleSkip handles the /skip command.
func (h *Handlers) HandleSkip(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	if err := sess.Skip(); err != nil {
		return respondError(r, friendlyError(err))
	}
	return respondSuccess(r, "Skipped.")
}

// HandlePrevious handles the /previous command.
func (h *Handlers) HandlePrevious(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	if err := sess.Previous(); err != nil {
		return respondError(r, friendlyError(err))
	}
	return respondSuccess(r, "Rewinding to the previous track.")
}

// HandleQueue handles the /queue subcommands.
func (h *Handlers) HandleQueue(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Missing subcommand.")
	}

	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	sub := options[0]
	switch sub.Name {
	case "list":
		page := 1
		for _, opt := range sub.Options {
			if opt.Name == "page" {
				page = int(opt.IntValue())
			}
		}
		return h.respondQueueList(r, sess, page)

	case "remove":
		position := 0
		for _, opt := range sub.Options {
			if opt.Name == "position" {
				position = int(opt.IntValue())
			}
		}
		track, err := sess.RemoveTrack(position)
		if err != nil {
			return respondError(r, friendlyError(err))
		}
		return respondSuccess(r, fmt.Sprintf("Removed **%s** from the queue.", track.Title))

	case "move":
		var from, to int
		for _, opt := range sub.Options {
			switch opt.Name {
			case "from":
				from = int(opt.IntValue())
			case "to":
				to = int(opt.IntValue())
			}
		}
		track, err := sess.MoveTrack(from, to)
		if err != nil {
			return respondError(r, friendlyError(err))
		}
		return respondSuccess(r, fmt.Sprintf("Moved **%s** to position %d.", track.Title, to))

	case "clear":
		if err := sess.Stop(); err != nil {
			return respondError(r, friendlyError(err))
		}
		return respondSuccess(r, "Cleared the queue.")

	default:
		return respondError(r, "Unknown subcommand.")
	}
}

// HandleVolume handles the /volume command.
func (h *Handlers) HandleVolume(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	var percent *int
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "percent" {
			v := int(opt.IntValue())
			percent = &v
		}
	}

	if percent == nil {
		return respondSuccess(r, fmt.Sprintf("Volume is at %d%%.", sess.Volume()))
	}

	if err := sess.SetVolume(*percent); err != nil {
		return respondError(r, friendlyError(err))
	}
	return respondSuccess(r, fmt.Sprintf("Volume set to %d%%.", *percent))
}

// HandleLoop handles the /loop command. Without an explicit mode it cycles
// off, track, queue.
func (h *Handlers) HandleLoop(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	var mode domain.LoopMode
	explicit := false
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "mode" {
			mode = domain.ParseLoopMode(opt.StringValue())
			explicit = true
		}
	}
	if !explicit {
		switch sess.LoopMode() {
		case domain.LoopOff:
			mode = domain.LoopTrack
		case domain.LoopTrack:
			mode = domain.LoopQueue
		default:
			mode = domain.LoopOff
		}
	}

	sess.SetLoopMode(mode)

	switch mode {
	case domain.LoopTrack:
		return respondSuccess(r, "Looping the current track.")
	case domain.LoopQueue:
		return respondSuccess(r, "Looping the whole queue.")
	default:
		return respondSuccess(r, "Loop disabled.")
	}
}

// HandleEQ handles the /eq command.
func (h *Handlers) HandleEQ(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	sess, err := h.currentSession(i)
	if err != nil {
		return respondError(r, friendlyError(err))
	}

	var profile domain.EQProfile
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "profile" {
			profile = domain.ParseEQProfile(opt.StringValue())
		}
	}

	sess.SetEQProfile(profile)
	return respondSuccess(r, fmt.Sprintf("Equalizer set to **%s**. It applies from the next track.", profile))
}

// ensureJoined returns the guild's session, joining a voice channel first if
// there is no live connection. Stored guild defaults are applied on a fresh
// join.
func (h *Handlers) ensureJoined(s *discordgo.Session, i *discordgo.InteractionCreate, explicit snowflake.ID) (*session.Session, error) {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return nil, errors.New("this command only works in a server")
	}
	textChannelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return nil, errors.New("invalid text channel")
	}

	sess := h.registry.GetOrCreate(guildID)
	sess.BindTextChannel(textChannelID)
	if sess.Connected() {
		return sess, nil
	}

	voiceChannelID := explicit
	if voiceChannelID == 0 {
		voiceChannelID, err = h.findUserVoiceChannel(s, i)
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	conn, err := h.transport.Join(ctx, guildID, voiceChannelID)
	if err != nil {
		return nil, fmt.Errorf("could not join the voice channel: %w", err)
	}
	sess.Connect(conn, textChannelID)

	if fn := h.defaults(); fn != nil {
		if volume, profile, ok := fn(guildID); ok {
			_ = sess.SetVolume(volume)
			sess.SetEQProfile(profile)
		}
	}
	return sess, nil
}

// currentSession returns the guild's live session without creating one.
func (h *Handlers) currentSession(i *discordgo.InteractionCreate) (*session.Session, error) {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return nil, errors.New("this command only works in a server")
	}

	sess, ok := h.registry.Get(guildID)
	if !ok {
		return nil, session.ErrNotConnected
	}
	if textChannelID, err := snowflake.Parse(i.ChannelID); err == nil {
		sess.BindTextChannel(textChannelID)
	}
	return sess, nil
}

func (h *Handlers) findUserVoiceChannel(s *discordgo.Session, i *discordgo.InteractionCreate) (snowflake.ID, error) {
	if i.Member == nil || i.Member.User == nil {
		return 0, errors.New("join a voice channel first")
	}

	guild, err := s.State.Guild(i.GuildID)
	if err != nil {
		return 0, errors.New("join a voice channel first")
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == i.Member.User.ID && vs.ChannelID != "" {
			id, err := snowflake.Parse(vs.ChannelID)
			if err != nil {
				return 0, errors.New("join a voice channel first")
			}
			return id, nil
		}
	}
	return 0, errors.New("join a voice channel first")
}

func (h *Handlers) respondQueueList(r bot.Responder, sess *session.Session, page int) error {
	snap := sess.Snapshot()
	tracks := sess.QueueTracks()

	var sb strings.Builder
	if snap.Current != nil {
		fmt.Fprintf(&sb, "**Now playing:** [%s](%s)\n\n",
			truncateTitle(snap.Current.Title), snap.Current.PageURL)
	}

	if len(tracks) == 0 {
		sb.WriteString("The queue is empty.")
		return respondSuccess(r, sb.String())
	}

	totalPages := (len(tracks) + queuePageSize - 1) / queuePageSize
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * queuePageSize
	end := min(start+queuePageSize, len(tracks))

	for idx := start; idx < end; idx++ {
		track := tracks[idx]
		fmt.Fprintf(&sb, "%d\\. [%s](%s) - %s\n",
			idx+1, truncateTitle(track.Title), track.PageURL, track.FormattedDuration())
	}
	fmt.Fprintf(&sb, "\nPage %d of %d - %d tracks total", page, totalPages, len(tracks))

	return respondSuccess(r, sb.String())
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxQueueTitles {
		return title
	}
	return string(runes[:maxQueueTitles]) + "..."
}

// friendlyError maps session errors to user-facing messages.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, session.ErrNotConnected):
		return "I'm not in a voice channel."
	case errors.Is(err, session.ErrNothingPlaying):
		return "Nothing is playing right now."
	case errors.Is(err, session.ErrAlreadyPaused):
		return "Playback is already paused."
	case errors.Is(err, session.ErrNotPaused):
		return "Playback is not paused."
	case errors.Is(err, session.ErrNoHistory):
		return "There is no previous track to go back to."
	case errors.Is(err, session.ErrInvalidPosition):
		return "That queue position does not exist."
	case errors.Is(err, session.ErrIngestBusy):
		return "I'm still adding another playlist. Try again in a moment."
	case errors.Is(err, session.ErrVolumeOutOfRange):
		return "Volume must be between 0 and 200."
	case errors.Is(err, session.ErrTerminated):
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
