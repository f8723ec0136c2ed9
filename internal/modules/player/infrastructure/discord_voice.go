package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"layeh.com/gopus"

	"github.com/harunon/kanade/internal/modules/player/ports"
)

// opusSendTimeout bounds how long the send loop blocks on a full OpusSend
// buffer before treating the connection as stalled.
const opusSendTimeout = 5 * time.Second

// DiscordVoiceTransport joins voice channels over the Discord gateway and
// streams locally transcoded audio.
type DiscordVoiceTransport struct {
	session *discordgo.Session
}

var _ ports.VoiceTransport = (*DiscordVoiceTransport)(nil)

// NewDiscordVoiceTransport creates a transport on top of an open gateway
// session.
func NewDiscordVoiceTransport(session *discordgo.Session) *DiscordVoiceTransport {
	return &DiscordVoiceTransport{session: session}
}

// Join connects to the voice channel, muted for receive.
func (t *DiscordVoiceTransport) Join(ctx context.Context, guildID, channelID snowflake.ID) (ports.Connection, error) {
	vc, err := t.session.ChannelVoiceJoin(guildID.String(), channelID.String(), false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	return &discordVoiceConnection{
		vc:        vc,
		guildID:   guildID,
		channelID: channelID,
	}, nil
}

// discordVoiceConnection drives one playback at a time: a send loop reads
// PCM frames from the stream, Opus-encodes them, and paces them onto the
// voice websocket.
type discordVoiceConnection struct {
	vc        *discordgo.VoiceConnection
	guildID   snowflake.ID
	channelID snowflake.ID

	paused atomic.Bool

	mu   sync.Mutex
	stop chan struct{}
}

var _ ports.Connection = (*discordVoiceConnection)(nil)

func (c *discordVoiceConnection) Play(ctx context.Context, stream ports.AudioStream, onFinish func(error)) error {
	src, ok := stream.(PCMStream)
	if !ok {
		return errors.New("stream does not provide PCM frames")
	}

	encoder, err := gopus.NewEncoder(pcmSampleRate, pcmChannels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}

	stop := make(chan struct{})
	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
	}
	c.stop = stop
	c.mu.Unlock()
	c.paused.Store(false)

	var once sync.Once
	finish := func(err error) {
		once.Do(func() { onFinish(err) })
	}

	go c.sendLoop(ctx, src, encoder, stop, finish)
	return nil
}

func (c *discordVoiceConnection) sendLoop(ctx context.Context, src PCMStream, encoder *gopus.Encoder, stop chan struct{}, finish func(error)) {
	c.setSpeaking(true)
	defer c.setSpeaking(false)

	for {
		select {
		case <-stop:
			finish(nil)
			return
		case <-ctx.Done():
			finish(ctx.Err())
			return
		default:
		}

		if c.paused.Load() {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		pcm, err := src.ReadPCM()
		if err != nil {
			if errors.Is(err, io.EOF) {
				finish(nil)
			} else {
				finish(err)
			}
			return
		}

		opus, err := encoder.Encode(pcm, pcmFrameSamples, len(pcm)*2)
		if err != nil {
			finish(fmt.Errorf("opus encode failed: %w", err))
			return
		}

		select {
		case c.vc.OpusSend <- opus:
		case <-stop:
			finish(nil)
			return
		case <-ctx.Done():
			finish(ctx.Err())
			return
		case <-time.After(opusSendTimeout):
			finish(errors.New("voice send stalled"))
			return
		}
	}
}

func (c *discordVoiceConnection) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *discordVoiceConnection) Pause() error {
	c.paused.Store(true)
	return nil
}

func (c *discordVoiceConnection) Resume() error {
	c.paused.Store(false)
	return nil
}

func (c *discordVoiceConnection) Alive() bool {
	return c.vc != nil && c.vc.Ready
}

func (c *discordVoiceConnection) ChannelID() snowflake.ID {
	return c.channelID
}

func (c *discordVoiceConnection) Close(ctx context.Context) error {
	c.Stop()
	if err := c.vc.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect voice: %w", err)
	}
	return nil
}

func (c *discordVoiceConnection) setSpeaking(speaking bool) {
	if err := c.vc.Speaking(speaking); err != nil {
		slog.Warn("speaking notification failed", "guild_id", c.guildID, "error", err)
	}
}
