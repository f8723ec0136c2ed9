package ports

import (
	"context"
	"time"

	"github.com/harunon/kanade/internal/modules/player/domain"
)

// PlaylistEntry is a single unresolved entry of a playlist result. Entries
// carry just enough to be resolved individually later.
type PlaylistEntry struct {
	PageURL string
	Title   string
}

// ResolveResult is the outcome of resolving a query: either a single playable
// track or a list of playlist entries, never both.
type ResolveResult struct {
	Track         *domain.Track
	Playlist      []PlaylistEntry
	PlaylistTitle string
}

// IsPlaylist returns true when the result holds playlist entries.
func (r *ResolveResult) IsPlaylist() bool {
	return len(r.Playlist) > 0
}

// Candidate is one ranked search result.
type Candidate struct {
	Title    string
	Uploader string
	PageURL  string
	Duration time.Duration
}

// StreamResolver turns queries and URLs into playable stream metadata and
// opens live audio streams. Resolution is slow, network-bound work; an
// implementation is expected to bound its own concurrency and must be safe
// for concurrent use across sessions.
type StreamResolver interface {
	// Resolve performs a single round trip turning a query or URL into either
	// one track or a playlist entry list. Returned errors are safe to surface
	// to end users.
	Resolve(ctx context.Context, query string, allowPlaylist bool) (*ResolveResult, error)

	// Search returns up to maxResults ranked candidates for a search term.
	// Auto-generated mix playlists are filtered out.
	Search(ctx context.Context, query string, maxResults int) ([]Candidate, error)

	// OpenStream produces a live, volume-adjustable audio stream for the
	// track, applying resampling, loudness leveling, and equalization per
	// profile. It fails without re-resolving if the track's stream URL has
	// gone stale; any re-resolution policy belongs to the caller.
	OpenStream(ctx context.Context, track *domain.Track, volume float64, profile domain.EQProfile) (AudioStream, error)
}

// AudioStream is a live audio source handed from the resolver to a voice
// connection. Volume changes take effect mid-playback.
type AudioStream interface {
	SetVolume(volume float64)
	Close() error
}
