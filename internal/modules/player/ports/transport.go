package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// VoiceTransport joins guild voice channels and hands out connections.
// A guild has at most one live connection, owned by its session.
type VoiceTransport interface {
	Join(ctx context.Context, guildID, channelID snowflake.ID) (Connection, error)
}

// Connection is a live voice channel connection.
type Connection interface {
	// Play starts playback of stream and returns immediately. onFinish is
	// invoked exactly once, from an arbitrary goroutine, when the source is
	// exhausted, playback fails, or Stop is called. The callback may fire
	// prematurely on transport hiccups; it must do nothing beyond posting a
	// signal.
	Play(ctx context.Context, stream AudioStream, onFinish func(error)) error

	// Stop aborts the current playback, triggering the onFinish callback.
	// No-op when nothing is playing.
	Stop()

	// Pause suspends frame transmission without consuming the stream.
	Pause() error

	// Resume restarts frame transmission after a pause.
	Resume() error

	// Alive reports whether the underlying transport is still connected.
	Alive() bool

	// ChannelID returns the connected voice channel.
	ChannelID() snowflake.ID

	// Close releases the connection.
	Close(ctx context.Context) error
}
