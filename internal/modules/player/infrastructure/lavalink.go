package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/harunon/kanade/internal/modules/player/domain"
	"github.com/harunon/kanade/internal/modules/player/ports"
)

// voiceConnectTimeout is the maximum time to wait for the Discord voice
// handshake before giving up on a join.
const voiceConnectTimeout = 10 * time.Second

// LavalinkConfig holds Lavalink node connection settings.
type LavalinkConfig struct {
	Address  string
	Password string
}

// pendingVoiceConnection tracks an in-flight voice handshake: it becomes
// ready once both the state and server updates have arrived.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && p.hasVoiceServer {
		select {
		case <-p.ready:
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer pairs up VoiceStateUpdate and VoiceServerUpdate before
// forwarding them to Lavalink, since Discord delivers them in either order.
type voiceEventBuffer struct {
	mu sync.Mutex

	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	hasVoiceServer bool
	token          string
	endpoint       string
}

func (b *voiceEventBuffer) setVoiceState(channelID *snowflake.ID, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceState = true
	b.channelID = channelID
	b.sessionID = sessionID
	return b.hasVoiceState && b.hasVoiceServer
}

func (b *voiceEventBuffer) setVoiceServer(token, endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceServer = true
	b.token = token
	b.endpoint = endpoint
	return b.hasVoiceState && b.hasVoiceServer
}

func (b *voiceEventBuffer) getData() (channelID *snowflake.ID, sessionID, token, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channelID = b.channelID
	sessionID = b.sessionID
	token = b.token
	endpoint = b.endpoint

	b.hasVoiceState = false
	b.hasVoiceServer = false
	b.channelID = nil
	b.sessionID = ""
	b.token = ""
	b.endpoint = ""
	return
}

// LavalinkBackend resolves and plays tracks through a Lavalink node instead
// of the local FFmpeg pipeline. It implements both the resolver and the
// voice transport.
type LavalinkBackend struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID

	pendingMu sync.Mutex
	pending   map[snowflake.ID]*pendingVoiceConnection

	voiceBufferMu sync.Mutex
	voiceBuffers  map[snowflake.ID]*voiceEventBuffer

	finishMu sync.Mutex
	finish   map[snowflake.ID]func(error)
}

var (
	_ ports.StreamResolver = (*LavalinkBackend)(nil)
	_ ports.VoiceTransport = (*LavalinkBackend)(nil)
)

// NewLavalinkBackend connects to the configured Lavalink node.
func NewLavalinkBackend(session *discordgo.Session, config LavalinkConfig) (*LavalinkBackend, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	backend := &LavalinkBackend{
		session:      session,
		botID:        botID,
		pending:      make(map[snowflake.ID]*pendingVoiceConnection),
		voiceBuffers: make(map[snowflake.ID]*voiceEventBuffer),
		finish:       make(map[snowflake.ID]func(error)),
	}

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(backend.onTrackEnd),
		disgolink.WithListenerFunc(backend.onTrackException),
		disgolink.WithListenerFunc(backend.onTrackStuck),
	)
	backend.link = link

	node, err := link.AddNode(context.Background(), disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)
	return backend, nil
}

// Close shuts down the node connection.
func (b *LavalinkBackend) Close() {
	b.link.Close()
}

// Resolve loads a query through the Lavalink node. Non-URL queries go
// through YouTube search; the top hit wins.
func (b *LavalinkBackend) Resolve(ctx context.Context, query string, allowPlaylist bool) (*ports.ResolveResult, error) {
	node := b.link.BestNode()
	if node == nil {
		return nil, errors.New("no available Lavalink node")
	}

	identifier := query
	if !isURL(query) {
		identifier = "ytsearch:" + query
	} else if isMixPlaylistURL(query) {
		return nil, errMixPlaylist
	}

	result, err := node.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	switch data := result.Data.(type) {
	case lavalink.Track:
		return &ports.ResolveResult{Track: b.convertTrack(data)}, nil

	case lavalink.Playlist:
		if !allowPlaylist {
			if len(data.Tracks) == 0 {
				return nil, errNoResults
			}
			return &ports.ResolveResult{Track: b.convertTrack(data.Tracks[0])}, nil
		}
		entries := make([]ports.PlaylistEntry, 0, len(data.Tracks))
		for _, track := range data.Tracks {
			entries = append(entries, ports.PlaylistEntry{
				PageURL: stringValue(track.Info.URI),
				Title:   track.Info.Title,
			})
		}
		return &ports.ResolveResult{Playlist: entries, PlaylistTitle: data.Info.Name}, nil

	case lavalink.Search:
		if len(data) == 0 {
			return nil, errNoResults
		}
		return &ports.ResolveResult{Track: b.convertTrack(data[0])}, nil

	case lavalink.Empty:
		return nil, errNoResults

	case lavalink.Exception:
		return nil, fmt.Errorf("track load failed: %s", data.Message)

	default:
		return nil, errNoResults
	}
}

// Search returns ranked candidates from the node's YouTube search.
func (b *LavalinkBackend) Search(ctx context.Context, query string, maxResults int) ([]ports.Candidate, error) {
	node := b.link.BestNode()
	if node == nil {
		return nil, errors.New("no available Lavalink node")
	}

	result, err := node.LoadTracks(ctx, "ytsearch:"+query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	tracks, ok := result.Data.(lavalink.Search)
	if !ok {
		return nil, nil
	}

	candidates := make([]ports.Candidate, 0, maxResults)
	for _, track := range tracks {
		if len(candidates) >= maxResults {
			break
		}
		candidates = append(candidates, ports.Candidate{
			Title:    track.Info.Title,
			Uploader: track.Info.Author,
			PageURL:  stringValue(track.Info.URI),
			Duration: time.Duration(track.Info.Length) * time.Millisecond,
		})
	}
	return candidates, nil
}

// OpenStream wraps the track's encoded payload; actual decoding happens on
// the Lavalink node. Volume and equalization map onto player filters.
func (b *LavalinkBackend) OpenStream(ctx context.Context, track *domain.Track, volume float64, profile domain.EQProfile) (ports.AudioStream, error) {
	if track.Encoded == "" {
		return nil, errors.New("track has no encoded payload")
	}
	return &lavalinkStream{backend: b, encoded: track.Encoded, volume: volume, profile: profile}, nil
}

// Join starts the voice handshake and waits for it to complete.
func (b *LavalinkBackend) Join(ctx context.Context, guildID, channelID snowflake.ID) (ports.Connection, error) {
	pending := &pendingVoiceConnection{ready: make(chan struct{})}

	b.pendingMu.Lock()
	b.pending[guildID] = pending
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, guildID)
		b.pendingMu.Unlock()
	}()

	if err := b.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, false); err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}

	select {
	case <-pending.ready:
	case <-ctx.Done():
		return nil, fmt.Errorf("voice connection cancelled: %w", ctx.Err())
	case <-time.After(voiceConnectTimeout):
		return nil, errors.New("timeout waiting for voice connection")
	}

	return &lavalinkConnection{backend: b, guildID: guildID, channelID: channelID}, nil
}

func (b *LavalinkBackend) convertTrack(track lavalink.Track) *domain.Track {
	info := track.Info

	var duration time.Duration
	if !info.IsStream {
		duration = time.Duration(info.Length) * time.Millisecond
	}

	thumbnail := ""
	if info.ArtworkURL != nil {
		thumbnail = *info.ArtworkURL
	}

	return &domain.Track{
		Title:     info.Title,
		PageURL:   stringValue(info.URI),
		Duration:  duration,
		Thumbnail: thumbnail,
		Uploader:  info.Author,
		Encoded:   track.Encoded,
	}
}

// OnVoiceServerUpdate must be wired to the Discord gateway event of the same
// name.
func (b *LavalinkBackend) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	buffer := b.getOrCreateVoiceBuffer(guildID)
	if buffer.setVoiceServer(event.Token, event.Endpoint) {
		b.forwardBufferedVoiceEvents(guildID, buffer)
	}

	b.pendingMu.Lock()
	pending := b.pending[guildID]
	b.pendingMu.Unlock()
	if pending != nil {
		pending.onEvent(false)
	}
}

// OnVoiceStateUpdate must be wired to the Discord gateway event of the same
// name. Updates for other users are ignored.
func (b *LavalinkBackend) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != b.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	if channelID == nil {
		b.link.OnVoiceStateUpdate(context.Background(), guildID, nil, event.SessionID)
		b.clearVoiceBuffer(guildID)
		return
	}

	buffer := b.getOrCreateVoiceBuffer(guildID)
	if buffer.setVoiceState(channelID, event.SessionID) {
		b.forwardBufferedVoiceEvents(guildID, buffer)
	}

	b.pendingMu.Lock()
	pending := b.pending[guildID]
	b.pendingMu.Unlock()
	if pending != nil {
		pending.onEvent(true)
	}
}

func (b *LavalinkBackend) getOrCreateVoiceBuffer(guildID snowflake.ID) *voiceEventBuffer {
	b.voiceBufferMu.Lock()
	defer b.voiceBufferMu.Unlock()

	buffer, exists := b.voiceBuffers[guildID]
	if !exists {
		buffer = &voiceEventBuffer{}
		b.voiceBuffers[guildID] = buffer
	}
	return buffer
}

func (b *LavalinkBackend) clearVoiceBuffer(guildID snowflake.ID) {
	b.voiceBufferMu.Lock()
	defer b.voiceBufferMu.Unlock()
	delete(b.voiceBuffers, guildID)
}

func (b *LavalinkBackend) forwardBufferedVoiceEvents(guildID snowflake.ID, buffer *voiceEventBuffer) {
	channelID, sessionID, token, endpoint := buffer.getData()

	b.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
	b.link.OnVoiceServerUpdate(context.Background(), guildID, token, endpoint)
}

func (b *LavalinkBackend) setFinish(guildID snowflake.ID, fn func(error)) {
	b.finishMu.Lock()
	defer b.finishMu.Unlock()
	b.finish[guildID] = fn
}

func (b *LavalinkBackend) takeFinish(guildID snowflake.ID) func(error) {
	b.finishMu.Lock()
	defer b.finishMu.Unlock()
	fn := b.finish[guildID]
	delete(b.finish, guildID)
	return fn
}

func (b *LavalinkBackend) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild_id", player.GuildID(), "reason", event.Reason)

	// Replaced means another Play superseded this one; its own callback
	// takes over.
	if event.Reason == lavalink.TrackEndReasonReplaced {
		return
	}

	fn := b.takeFinish(player.GuildID())
	if fn == nil {
		return
	}

	if event.Reason == lavalink.TrackEndReasonLoadFailed {
		fn(errors.New("track load failed on node"))
		return
	}
	fn(nil)
}

func (b *LavalinkBackend) onTrackException(player disgolink.Player, event lavalink.TrackExceptionEvent) {
	slog.Warn("track exception", "guild_id", player.GuildID(), "error", event.Exception.Message)
}

func (b *LavalinkBackend) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild_id", player.GuildID(), "threshold", event.Threshold)
}

// lavalinkStream is a handle to a track scheduled on the node. Volume
// changes go through the player REST API.
type lavalinkStream struct {
	backend *LavalinkBackend
	guildID snowflake.ID
	encoded string
	volume  float64
	profile domain.EQProfile
}

var _ ports.AudioStream = (*lavalinkStream)(nil)

func (s *lavalinkStream) SetVolume(volume float64) {
	player := s.backend.link.ExistingPlayer(s.guildID)
	if player == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := player.Update(ctx, lavalink.WithVolume(int(volume*100))); err != nil {
		slog.Warn("failed to update player volume", "guild_id", s.guildID, "error", err)
	}
}

func (s *lavalinkStream) Close() error {
	return nil
}

// lavalinkConnection adapts a guild's Lavalink player to the voice
// connection contract.
type lavalinkConnection struct {
	backend   *LavalinkBackend
	guildID   snowflake.ID
	channelID snowflake.ID

	mu     sync.Mutex
	closed bool
}

var _ ports.Connection = (*lavalinkConnection)(nil)

func (c *lavalinkConnection) Play(ctx context.Context, stream ports.AudioStream, onFinish func(error)) error {
	src, ok := stream.(*lavalinkStream)
	if !ok {
		return errors.New("stream was not produced by the Lavalink resolver")
	}
	src.guildID = c.guildID

	c.backend.setFinish(c.guildID, onFinish)

	player := c.backend.link.Player(c.guildID)
	opts := []lavalink.PlayerUpdateOpt{
		lavalink.WithEncodedTrack(src.encoded),
		lavalink.WithVolume(int(src.volume * 100)),
		lavalink.WithFilters(eqFilters(src.profile)),
	}
	if err := player.Update(ctx, opts...); err != nil {
		c.backend.takeFinish(c.guildID)
		return fmt.Errorf("failed to start playback: %w", err)
	}
	return nil
}

func (c *lavalinkConnection) Stop() {
	player := c.backend.link.ExistingPlayer(c.guildID)
	if player == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := player.Update(ctx, lavalink.WithNullTrack()); err != nil {
		slog.Warn("failed to stop playback", "guild_id", c.guildID, "error", err)
	}
}

func (c *lavalinkConnection) Pause() error {
	player := c.backend.link.Player(c.guildID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := player.Update(ctx, lavalink.WithPaused(true)); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}
	return nil
}

func (c *lavalinkConnection) Resume() error {
	player := c.backend.link.Player(c.guildID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := player.Update(ctx, lavalink.WithPaused(false)); err != nil {
		return fmt.Errorf("failed to resume playback: %w", err)
	}
	return nil
}

func (c *lavalinkConnection) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *lavalinkConnection) ChannelID() snowflake.ID {
	return c.channelID
}

func (c *lavalinkConnection) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if player := c.backend.link.ExistingPlayer(c.guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild_id", c.guildID, "error", err)
		}
	}

	if err := c.backend.session.ChannelVoiceJoinManual(c.guildID.String(), "", false, false); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// eqFilters maps an equalizer profile onto node-side player filters. The
// balanced profile lifts the bands nearest 80 Hz and 8 kHz to match the
// local FFmpeg pipeline; hi-fi clears every filter for uncolored playback.
func eqFilters(profile domain.EQProfile) lavalink.Filters {
	if profile != domain.EQBalanced {
		return lavalink.Filters{}
	}

	var eq lavalink.Equalizer
	eq[2], eq[3] = 0.15, 0.15   // 63 and 100 Hz
	eq[12], eq[13] = 0.10, 0.10 // 6.3 and 10 kHz
	return lavalink.Filters{Equalizer: &eq}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
