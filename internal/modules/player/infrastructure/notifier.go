package infrastructure

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/harunon/kanade/internal/modules/player/domain"
	"github.com/harunon/kanade/internal/modules/player/ports"
)

// Embed colors.
const (
	colorBlue = 0x3498DB
	colorGrey = 0x95A5A6
	colorRed  = 0xE74C3C
)

// maxErrorRunes bounds user-visible error text so extraction stack traces
// never blow Discord's message limits.
const maxErrorRunes = 1800

// DiscordNotifier renders session state as Discord embeds. The now-playing
// panel is edited in place per channel; everything else is sent as one-off
// messages.
type DiscordNotifier struct {
	session *discordgo.Session

	mu     sync.Mutex
	panels map[snowflake.ID]string // channel -> panel message ID
}

var _ ports.PanelNotifier = (*DiscordNotifier)(nil)

// NewDiscordNotifier creates a notifier on top of an open gateway session.
func NewDiscordNotifier(session *discordgo.Session) *DiscordNotifier {
	return &DiscordNotifier{
		session: session,
		panels:  make(map[snowflake.ID]string),
	}
}

// UpdatePanel sends the now-playing panel, or edits the previous one when it
// is still the latest message we sent to the channel.
func (n *DiscordNotifier) UpdatePanel(channelID snowflake.ID, snap ports.Snapshot) {
	embed := n.panelEmbed(snap)

	n.mu.Lock()
	messageID := n.panels[channelID]
	n.mu.Unlock()

	if messageID != "" {
		_, err := n.session.ChannelMessageEditEmbed(channelID.String(), messageID, embed)
		if err == nil {
			return
		}
		slog.Debug("panel edit failed, sending a new one",
			"channel_id", channelID, "error", err)
	}

	msg, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	if err != nil {
		slog.Warn("failed to send panel", "channel_id", channelID, "error", err)
		return
	}

	n.mu.Lock()
	n.panels[channelID] = msg.ID
	n.mu.Unlock()
}

// SendInfo sends a plain informational embed.
func (n *DiscordNotifier) SendInfo(channelID snowflake.ID, message string) {
	n.sendEmbed(channelID, &discordgo.MessageEmbed{
		Description: message,
		Color:       colorBlue,
	})
}

// SendError sends an error embed, truncated to fit.
func (n *DiscordNotifier) SendError(channelID snowflake.ID, message string) {
	n.sendEmbed(channelID, &discordgo.MessageEmbed{
		Description: truncateRunes(message, maxErrorRunes),
		Color:       colorRed,
	})
}

// SendFarewell sends the terminal notification and forgets the channel's
// panel, so a future session starts a fresh one.
func (n *DiscordNotifier) SendFarewell(channelID snowflake.ID) {
	n.mu.Lock()
	delete(n.panels, channelID)
	n.mu.Unlock()

	n.sendEmbed(channelID, &discordgo.MessageEmbed{
		Description: "Disconnected from the voice channel. See you next time!",
		Color:       colorGrey,
	})
}

func (n *DiscordNotifier) sendEmbed(channelID snowflake.ID, embed *discordgo.MessageEmbed) {
	if _, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed); err != nil {
		slog.Warn("failed to send notification", "channel_id", channelID, "error", err)
	}
}

func (n *DiscordNotifier) panelEmbed(snap ports.Snapshot) *discordgo.MessageEmbed {
	if snap.Current == nil {
		return &discordgo.MessageEmbed{
			Author:      &discordgo.MessageEmbedAuthor{Name: "Playback finished"},
			Description: "The queue is empty. Add something to keep the music going.",
			Color:       colorGrey,
		}
	}

	track := snap.Current
	name := "Now Playing"
	if snap.Paused {
		name = "Paused"
	}

	progress := track.FormattedDuration()
	if !track.IsLive() {
		progress = domain.FormatDuration(snap.Elapsed) + " / " + track.FormattedDuration()
	}

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{Name: name},
		Title:  track.Title,
		URL:    track.PageURL,
		Color:  colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Progress", Value: progress, Inline: true},
			{Name: "Volume", Value: strconv.Itoa(int(snap.Volume*100+0.5)) + "%", Inline: true},
			{Name: "Loop", Value: snap.LoopMode.String(), Inline: true},
			{Name: "EQ", Value: snap.EQProfile.String(), Inline: true},
			{Name: "Queue", Value: strconv.Itoa(snap.QueueLength), Inline: true},
		},
	}

	if track.Uploader != "" {
		embed.Fields = append([]*discordgo.MessageEmbedField{
			{Name: "Uploader", Value: track.Uploader, Inline: true},
		}, embed.Fields...)
	}
	if track.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: track.Thumbnail}
	}
	if track.RequesterName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Requested by %s", track.RequesterName),
		}
	}
	return embed
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
