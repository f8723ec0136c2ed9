package domain

import (
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Track represents a playable audio track. Tracks are immutable values: once
// resolved, a track moves between queue, current slot, and history without
// being mutated.
type Track struct {
	Title     string
	PageURL   string // canonical page URL (re-resolvable)
	StreamURL string // direct media URL; may go stale
	Duration  time.Duration
	Thumbnail string
	Uploader  string

	RequesterID   snowflake.ID
	RequesterName string

	// Encoded carries the opaque payload used by remote playback backends.
	// Empty for locally transcoded tracks.
	Encoded string
}

// IsLive returns true when the track has no known duration (live stream).
func (t *Track) IsLive() bool {
	return t.Duration == 0
}

// FormattedDuration returns the duration as a human-readable string
// (mm:ss or hh:mm:ss), or "LIVE" for tracks with unknown duration.
func (t *Track) FormattedDuration() string {
	if t.IsLive() {
		return "LIVE"
	}
	return FormatDuration(t.Duration)
}

// FormatDuration renders d as mm:ss, or hh:mm:ss for durations of an hour or
// more. Negative durations clamp to zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return pad(hours) + ":" + pad(minutes) + ":" + pad(seconds)
	}
	return pad(minutes) + ":" + pad(seconds)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
