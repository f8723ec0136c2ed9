package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"golang.org/x/sync/semaphore"

	"github.com/harunon/kanade/internal/modules/player/domain"
	"github.com/harunon/kanade/internal/modules/player/ports"
)

const (
	// defaultResolverWorkers bounds concurrent yt-dlp subprocesses across
	// all guilds.
	defaultResolverWorkers = 2

	maxPlaylistEntries = 100
	resolveTimeout     = 60 * time.Second
)

var (
	errNoResults   = errors.New("no results found")
	errMixPlaylist = errors.New("auto-generated mix playlists are not supported")
)

// YtdlpResolver resolves queries and URLs through yt-dlp and opens FFmpeg
// streams for playback. Extraction runs in subprocesses; a weighted
// semaphore caps how many run at once.
type YtdlpResolver struct {
	sem    *semaphore.Weighted
	search *ytsearch.Client
}

var _ ports.StreamResolver = (*YtdlpResolver)(nil)

// NewYtdlpResolver creates a resolver running at most workers extractions
// concurrently.
func NewYtdlpResolver(workers int64) *YtdlpResolver {
	if workers <= 0 {
		workers = defaultResolverWorkers
	}
	return &YtdlpResolver{
		sem:    semaphore.NewWeighted(workers),
		search: ytsearch.NewClient(nil),
	}
}

// Resolve turns a query or URL into a single track or a playlist entry list.
func (r *YtdlpResolver) Resolve(ctx context.Context, query string, allowPlaylist bool) (*ports.ResolveResult, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	if allowPlaylist && isPlaylistURL(query) {
		if isMixPlaylistURL(query) {
			return nil, errMixPlaylist
		}
		entries, err := r.extractPlaylist(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return &ports.ResolveResult{Playlist: entries}, nil
		}
		// A watch URL with a list parameter but no expandable entries falls
		// through to single-track extraction.
	}

	target := query
	if !isURL(query) {
		target = "ytsearch1:" + query
	}

	track, err := r.extractMetadata(ctx, target)
	if err != nil {
		return nil, err
	}
	return &ports.ResolveResult{Track: track}, nil
}

// Search returns ranked candidates, preferring the lightweight scraper and
// falling back to yt-dlp when it yields nothing.
func (r *YtdlpResolver) Search(ctx context.Context, query string, maxResults int) ([]ports.Candidate, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	if res, err := r.search.Search(ctx, query); err == nil {
		candidates := make([]ports.Candidate, 0, maxResults)
		for _, item := range res.Results {
			if len(candidates) >= maxResults {
				break
			}
			candidates = append(candidates, ports.Candidate{
				Title:   item.Title,
				PageURL: "https://www.youtube.com/watch?v=" + item.VideoID,
			})
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}

	return r.searchWithYtdlp(ctx, query, maxResults)
}

// OpenStream opens the track's direct media URL with FFmpeg.
func (r *YtdlpResolver) OpenStream(ctx context.Context, track *domain.Track, volume float64, profile domain.EQProfile) (ports.AudioStream, error) {
	if track.StreamURL == "" {
		return nil, errors.New("track has no stream URL")
	}
	return OpenTranscoder(track.StreamURL, volume, profile)
}

func (r *YtdlpResolver) extractMetadata(ctx context.Context, target string) (*domain.Track, error) {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		Format("bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best").
		Print("%(url)s\t%(webpage_url)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(thumbnail)s").
		SkipDownload()

	// --no-playlist pins watch URLs that carry a list parameter to the
	// single video. Playlist expansion must never pass it.
	args := append(extractorArgs(), "--no-playlist", target)
	res, err := cmd.Run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	for line := range strings.Lines(strings.TrimSpace(res.Stdout)) {
		if track, ok := parseMetadataLine(strings.TrimRight(line, "\n")); ok {
			return track, nil
		}
	}
	return nil, errNoResults
}

func (r *YtdlpResolver) extractPlaylist(ctx context.Context, url string) ([]ports.PlaylistEntry, error) {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		FlatPlaylist().
		Print("%(url)s\t%(title)s").
		PlaylistItems(fmt.Sprintf("1-%d", maxPlaylistEntries))

	res, err := cmd.Run(ctx, append(extractorArgs(), url)...)
	if err != nil {
		return nil, fmt.Errorf("playlist extraction failed: %w", err)
	}
	return parsePlaylistOutput(res.Stdout), nil
}

func (r *YtdlpResolver) searchWithYtdlp(ctx context.Context, query string, maxResults int) ([]ports.Candidate, error) {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(uploader)s\t%(duration)s").
		PlaylistItems(fmt.Sprintf("1-%d", maxResults))

	res, err := cmd.Run(ctx, append(extractorArgs(), fmt.Sprintf("ytsearch%d:%s", maxResults, query))...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var candidates []ports.Candidate
	for line := range strings.Lines(strings.TrimSpace(res.Stdout)) {
		parts := strings.Split(strings.TrimRight(line, "\n"), "\t")
		if len(parts) < 4 || parts[1] == "" || parts[1] == "NA" {
			continue
		}
		if isMixPlaylistURL(parts[0]) {
			continue
		}
		duration, _ := time.ParseDuration(parts[3] + "s")
		candidates = append(candidates, ports.Candidate{
			PageURL:  parts[0],
			Title:    parts[1],
			Uploader: parts[2],
			Duration: duration,
		})
	}
	return candidates, nil
}

// extractorArgs are the flags shared by every yt-dlp invocation. Flags that
// change what gets extracted, such as --no-playlist, stay with the call
// sites that want them.
func extractorArgs() []string {
	return []string{
		"--no-check-certificates",
		"--extractor-args", "youtube:player_client=android,web",
		"--socket-timeout", "30",
		"--retries", "10",
	}
}

// parseMetadataLine parses one tab-separated extraction line into a track.
// Lines with missing fields or an unparseable duration are rejected.
func parseMetadataLine(line string) (*domain.Track, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < 6 || parts[0] == "" || parts[2] == "" || parts[2] == "NA" {
		return nil, false
	}

	// "NA" duration means a live stream; keep zero.
	var duration time.Duration
	if parts[4] != "" && parts[4] != "NA" {
		duration, _ = time.ParseDuration(parts[4] + "s")
	}

	uploader := parts[3]
	if uploader == "NA" {
		uploader = ""
	}
	thumbnail := parts[5]
	if thumbnail == "NA" {
		thumbnail = ""
	}

	return &domain.Track{
		StreamURL: parts[0],
		PageURL:   parts[1],
		Title:     parts[2],
		Uploader:  uploader,
		Duration:  duration,
		Thumbnail: thumbnail,
	}, true
}

func parsePlaylistOutput(stdout string) []ports.PlaylistEntry {
	var entries []ports.PlaylistEntry
	for line := range strings.Lines(strings.TrimSpace(stdout)) {
		parts := strings.Split(strings.TrimRight(line, "\n"), "\t")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" || parts[1] == "NA" {
			continue
		}
		entries = append(entries, ports.PlaylistEntry{PageURL: parts[0], Title: parts[1]})
	}
	return entries
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isPlaylistURL(s string) bool {
	return isURL(s) && strings.Contains(s, "list=")
}

// isMixPlaylistURL reports whether the URL points at a YouTube auto-generated
// mix, whose playlist IDs start with "RD". Mixes are unbounded and cannot be
// ingested.
func isMixPlaylistURL(s string) bool {
	return strings.Contains(s, "list=RD")
}
