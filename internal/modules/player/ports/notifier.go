package ports

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harunon/kanade/internal/modules/player/domain"
)

// Snapshot is an immutable view of a session's playback state, taken after
// every state-affecting transition and handed to the presentation layer.
type Snapshot struct {
	GuildID     snowflake.ID
	Current     *domain.Track
	Elapsed     time.Duration
	QueueLength int
	Volume      float64
	LoopMode    domain.LoopMode
	EQProfile   domain.EQProfile
	Paused      bool
	Finished    bool
}

// PanelNotifier renders session state into the bound text channel. All
// methods are fire-and-forget from the session's point of view; delivery
// failures are the notifier's problem.
type PanelNotifier interface {
	// UpdatePanel sends or edits the now-playing panel.
	UpdatePanel(channelID snowflake.ID, snap Snapshot)

	// SendInfo sends an informational message.
	SendInfo(channelID snowflake.ID, message string)

	// SendError sends a user-visible error message. Long messages are
	// truncated before display.
	SendError(channelID snowflake.ID, message string)

	// SendFarewell sends the terminal notification during session teardown.
	SendFarewell(channelID snowflake.ID)
}
