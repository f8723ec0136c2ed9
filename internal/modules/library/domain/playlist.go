package domain

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
)

// MaxPlaylistNameLength bounds playlist names so they render in embeds.
const MaxPlaylistNameLength = 100

// Playlist is a named, guild-scoped list of saved tracks.
type Playlist struct {
	ID         int64
	GuildID    snowflake.ID
	Name       string
	TrackCount int
	CreatedAt  time.Time
}

// PlaylistTrack is one saved entry of a playlist. Only the page URL and title
// are persisted; stream URLs go stale and get re-resolved at play time.
type PlaylistTrack struct {
	Position int // 1-indexed
	Title    string
	PageURL  string
}

// Profile holds a guild's persistent playback defaults.
type Profile struct {
	GuildID       snowflake.ID
	VolumePercent int
	EQProfile     string
}

// ValidatePlaylistName checks that name is usable as a playlist identifier.
func ValidatePlaylistName(name string) error {
	if name == "" {
		return errors.New("playlist name must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxPlaylistNameLength {
		return errors.New("playlist name is too long")
	}
	return nil
}
