package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"

	"github.com/harunon/kanade/internal/modules/player/domain"
	"github.com/harunon/kanade/internal/modules/player/ports"
)

// Options tune a session's timers and limits. Zero values fall back to the
// defaults below.
type Options struct {
	HistoryCapacity         int
	IdleLeaveTimeout        time.Duration
	EmptyChannelTimeout     time.Duration
	SpuriousSignalThreshold time.Duration
	LivenessGraceDelay      time.Duration
	PanelRefreshInterval    time.Duration
	IngestPace              time.Duration
}

const (
	defaultIdleLeaveTimeout        = 5 * time.Minute
	defaultEmptyChannelTimeout     = 30 * time.Second
	defaultSpuriousSignalThreshold = 5 * time.Second
	defaultLivenessGraceDelay      = 2 * time.Second
	defaultPanelRefreshInterval    = 5 * time.Second
	defaultIngestPace              = 100 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = domain.DefaultHistoryCapacity
	}
	if o.IdleLeaveTimeout <= 0 {
		o.IdleLeaveTimeout = defaultIdleLeaveTimeout
	}
	if o.EmptyChannelTimeout <= 0 {
		o.EmptyChannelTimeout = defaultEmptyChannelTimeout
	}
	if o.SpuriousSignalThreshold <= 0 {
		o.SpuriousSignalThreshold = defaultSpuriousSignalThreshold
	}
	if o.LivenessGraceDelay <= 0 {
		o.LivenessGraceDelay = defaultLivenessGraceDelay
	}
	if o.PanelRefreshInterval <= 0 {
		o.PanelRefreshInterval = defaultPanelRefreshInterval
	}
	if o.IngestPace <= 0 {
		o.IngestPace = defaultIngestPace
	}
	return o
}

// Requester identifies the user who asked for a track.
type Requester struct {
	ID   snowflake.ID
	Name string
}

// Session owns all playback state for one guild: the voice connection, the
// queue and history, loop and equalizer settings, and the persistent loop
// that drives playback. All exported methods are safe for concurrent use.
type Session struct {
	guildID  snowflake.ID
	resolver ports.StreamResolver
	notifier ports.PanelNotifier
	opts     Options

	queue   *domain.Queue
	history *domain.History

	songFinished *Event
	queueAdded   *Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	started    atomic.Bool
	cleaningUp atomic.Bool

	mu            sync.Mutex
	conn          ports.Connection
	stream        ports.AudioStream
	textChannelID snowflake.ID
	current       *domain.Track
	loopMode      domain.LoopMode
	eqProfile     domain.EQProfile
	volume        float64

	playing bool
	paused  bool

	skipRequested     bool
	previousRequested bool
	stopRequested     bool

	// finishSpent marks that the transport's completion callback already
	// fired and was dropped as premature. The transport reports at most
	// once, so user aborts must post the signal themselves.
	finishSpent bool

	playbackStart time.Time
	expectedEnd   time.Time
	pausedAt      time.Time
	pausedTotal   time.Duration

	panelTask      task
	ingestTask     task
	idleLeaveTask  task
	emptyLeaveTask task
}

// New creates a session for guildID. The session is inert until Start is
// called.
func New(guildID snowflake.ID, resolver ports.StreamResolver, notifier ports.PanelNotifier, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		guildID:      guildID,
		resolver:     resolver,
		notifier:     notifier,
		opts:         opts.withDefaults(),
		queue:        domain.NewQueue(),
		history:      domain.NewHistory(opts.HistoryCapacity),
		songFinished: NewEvent(),
		queueAdded:   NewEvent(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		volume:       1.0,
	}
}

// Start launches the playback loop. Subsequent calls are no-ops.
func (s *Session) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
}

// GuildID returns the guild this session belongs to.
func (s *Session) GuildID() snowflake.ID {
	return s.guildID
}

// Done is closed once the session has fully terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Terminated reports whether teardown has begun.
func (s *Session) Terminated() bool {
	return s.cleaningUp.Load()
}

// Connect attaches a live voice connection and binds the text channel used
// for panel updates and notifications. When already connected it only
// rebinds the text channel.
func (s *Session) Connect(conn ports.Connection, textChannelID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textChannelID = textChannelID
	if s.conn == nil {
		s.conn = conn
	}
}

// Connected reports whether the session holds a live voice connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.conn.Alive()
}

// VoiceChannelID returns the connected voice channel, or zero when not
// connected.
func (s *Session) VoiceChannelID() snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0
	}
	return s.conn.ChannelID()
}

// BindTextChannel updates the channel where panels and notifications land.
func (s *Session) BindTextChannel(channelID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textChannelID = channelID
}

// Enqueue resolves query in the background and appends the result. Playlist
// URLs expand into a bulk ingest when allowPlaylist is set. The call returns
// immediately; failures are reported through the notifier.
func (s *Session) Enqueue(query string, allowPlaylist bool, requester Requester) error {
	if s.cleaningUp.Load() {
		return ErrTerminated
	}

	go func() {
		res, err := s.resolver.Resolve(s.ctx, query, allowPlaylist)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			slog.Warn("track resolution failed", "guild_id", s.guildID, "query", query, "error", err)
			s.notifyError(err.Error())
			return
		}

		if res.IsPlaylist() {
			if err := s.EnqueueMany(res.Playlist, requester); err != nil {
				s.notifyError(err.Error())
			}
			return
		}

		track := res.Track
		if track == nil {
			s.notifyError("No results for: " + query)
			return
		}
		track.RequesterID = requester.ID
		track.RequesterName = requester.Name
		s.enqueueTrack(track)
		s.notifyInfo("Added to queue: " + track.Title)
	}()
	return nil
}

// EnqueueMany resolves playlist entries one by one in a background task,
// appending each as it completes. Only one ingest runs at a time; a second
// call while one is in flight returns ErrIngestBusy.
func (s *Session) EnqueueMany(entries []ports.PlaylistEntry, requester Requester) error {
	if s.cleaningUp.Load() {
		return ErrTerminated
	}
	if len(entries) == 0 {
		return nil
	}

	started := s.ingestTask.TryStart(s.ctx, func(ctx context.Context) {
		s.ingest(ctx, entries, requester)
	})
	if !started {
		return ErrIngestBusy
	}
	return nil
}

func (s *Session) ingest(ctx context.Context, entries []ports.PlaylistEntry, requester Requester) {
	limiter := rate.NewLimiter(rate.Every(s.opts.IngestPace), 1)

	added := 0
	for _, entry := range entries {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		res, err := s.resolver.Resolve(ctx, entry.PageURL, false)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("playlist entry resolution failed",
				"guild_id", s.guildID, "url", entry.PageURL, "error", err)
			continue
		}
		if res.Track == nil {
			continue
		}

		track := res.Track
		track.RequesterID = requester.ID
		track.RequesterName = requester.Name
		s.enqueueTrack(track)
		added++
	}

	if added > 0 {
		s.notifyInfo("Added " + strconv.Itoa(added) + " tracks to the queue.")
	} else {
		s.notifyError("No playable tracks found in the playlist.")
	}
}

// enqueueTrack appends a track and wakes the loop if it was idling. The wake
// fires only on the empty-and-idle to non-empty transition.
func (s *Session) enqueueTrack(track *domain.Track) {
	s.mu.Lock()
	wasIdle := s.current == nil && s.queue.IsEmpty()
	s.mu.Unlock()

	s.queue.Append(track)
	if wasIdle {
		s.queueAdded.Set()
	}
}

// Pause suspends playback. Elapsed-time accounting freezes until Resume.
func (s *Session) Pause() error {
	s.mu.Lock()
	if !s.playing || s.current == nil {
		s.mu.Unlock()
		return ErrNothingPlaying
	}
	if s.paused {
		s.mu.Unlock()
		return ErrAlreadyPaused
	}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Pause(); err != nil {
		return err
	}

	s.mu.Lock()
	s.paused = true
	s.pausedAt = time.Now()
	s.mu.Unlock()

	s.pushPanel()
	return nil
}

// Resume restarts paused playback.
func (s *Session) Resume() error {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return ErrNotPaused
	}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Resume(); err != nil {
		return err
	}

	s.mu.Lock()
	s.pausedTotal += time.Since(s.pausedAt)
	s.pausedAt = time.Time{}
	s.paused = false
	s.mu.Unlock()

	s.pushPanel()
	return nil
}

// Skip aborts the current track. The loop records it in history and advances
// regardless of loop mode.
func (s *Session) Skip() error {
	s.mu.Lock()
	if !s.playing || s.current == nil {
		s.mu.Unlock()
		return ErrNothingPlaying
	}
	s.skipRequested = true
	conn := s.conn
	spent := s.finishSpent
	s.mu.Unlock()

	if conn != nil {
		conn.Stop()
	}
	if spent {
		s.songFinished.Set()
	}
	return nil
}

// Previous replays the most recently finished track. The current track, if
// any, is aborted and returned to the front of the queue unrecorded.
func (s *Session) Previous() error {
	if s.history.IsEmpty() {
		return ErrNoHistory
	}

	s.mu.Lock()
	s.skipRequested = true
	s.previousRequested = true
	playing := s.playing
	conn := s.conn
	spent := s.finishSpent
	s.mu.Unlock()

	if playing && conn != nil {
		conn.Stop()
		if spent {
			s.songFinished.Set()
		}
		return nil
	}

	// Idle: no playback to abort, wake the loop directly.
	s.queueAdded.Set()
	return nil
}

// Stop aborts playback and clears both the queue and the history. Any
// in-flight playlist ingest is cancelled. The session stays connected and
// idles until new tracks arrive or the idle timer fires.
func (s *Session) Stop() error {
	s.ingestTask.Cancel()
	s.queue.Clear()
	s.history.Clear()

	s.mu.Lock()
	s.stopRequested = true
	playing := s.playing || s.paused
	conn := s.conn
	spent := s.finishSpent
	s.mu.Unlock()

	if playing && conn != nil {
		conn.Stop()
		if spent {
			s.songFinished.Set()
		}
		return nil
	}

	// Nothing audibly playing, but the loop may be mid-preparation with a
	// popped track that has not started yet. Posting the signal keeps it
	// from parking on a track that should already be gone.
	s.songFinished.Set()
	return nil
}

// RemoveTrack removes the queued track at a 1-based position.
func (s *Session) RemoveTrack(position int) (*domain.Track, error) {
	track, ok := s.queue.RemoveAt(position - 1)
	if !ok {
		return nil, ErrInvalidPosition
	}
	return track, nil
}

// MoveTrack relocates a queued track between 1-based positions.
func (s *Session) MoveTrack(from, to int) (*domain.Track, error) {
	track, ok := s.queue.Move(from-1, to-1)
	if !ok {
		return nil, ErrInvalidPosition
	}
	return track, nil
}

// QueueTracks returns the queued tracks in play order.
func (s *Session) QueueTracks() []*domain.Track {
	return s.queue.List()
}

// HistoryTracks returns finished tracks, oldest first.
func (s *Session) HistoryTracks() []*domain.Track {
	return s.history.List()
}

// SetVolume sets the playback volume in percent, 0 to 200. The change takes
// effect immediately on the active stream and persists across tracks.
func (s *Session) SetVolume(percent int) error {
	if percent < 0 || percent > 200 {
		return ErrVolumeOutOfRange
	}

	s.mu.Lock()
	s.volume = float64(percent) / 100
	stream := s.stream
	s.mu.Unlock()

	if stream != nil {
		stream.SetVolume(float64(percent) / 100)
	}
	s.pushPanel()
	return nil
}

// Volume returns the current volume in percent.
func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.volume*100 + 0.5)
}

// SetLoopMode sets the loop mode.
func (s *Session) SetLoopMode(mode domain.LoopMode) {
	s.mu.Lock()
	s.loopMode = mode
	s.mu.Unlock()
	s.pushPanel()
}

// LoopMode returns the current loop mode.
func (s *Session) LoopMode() domain.LoopMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopMode
}

// SetEQProfile sets the equalizer profile. It applies from the next opened
// stream onward.
func (s *Session) SetEQProfile(profile domain.EQProfile) {
	s.mu.Lock()
	s.eqProfile = profile
	s.mu.Unlock()
	s.pushPanel()
}

// EQProfile returns the current equalizer profile.
func (s *Session) EQProfile() domain.EQProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eqProfile
}

// Elapsed returns how far into the current track playback is, excluding time
// spent paused. Zero when nothing is playing.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	if !s.playing || s.playbackStart.IsZero() {
		return 0
	}
	if s.paused {
		return s.pausedAt.Sub(s.playbackStart) - s.pausedTotal
	}
	return time.Since(s.playbackStart) - s.pausedTotal
}

// Snapshot returns an immutable view of the playback state.
func (s *Session) Snapshot() ports.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ports.Snapshot{
		GuildID:     s.guildID,
		Current:     s.current,
		Elapsed:     s.elapsedLocked(),
		QueueLength: s.queue.Len(),
		Volume:      s.volume,
		LoopMode:    s.loopMode,
		EQProfile:   s.eqProfile,
		Paused:      s.paused,
		Finished:    !s.playing,
	}
}

// NotifyChannelOccupancy reports how many non-bot members share the voice
// channel. Zero arms the empty-channel leave timer; anything else cancels it.
func (s *Session) NotifyChannelOccupancy(humans int) {
	if humans > 0 {
		s.emptyLeaveTask.Cancel()
		return
	}
	if s.emptyLeaveTask.Active() {
		return
	}
	s.emptyLeaveTask.Start(s.ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.EmptyChannelTimeout):
		}
		slog.Info("leaving empty voice channel", "guild_id", s.guildID)
		s.Cleanup()
	})
}

// Cleanup tears the session down: cancels every background task, stops the
// loop, releases the voice connection, and sends the terminal notification.
// Safe to call from any goroutine; only the first call does the work.
func (s *Session) Cleanup() {
	if !s.cleaningUp.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	channelID := s.textChannelID
	conn := s.conn
	stream := s.stream
	s.conn = nil
	s.stream = nil
	s.playing = false
	s.paused = false
	s.mu.Unlock()

	s.panelTask.Cancel()
	s.ingestTask.Cancel()
	s.idleLeaveTask.Cancel()
	s.emptyLeaveTask.Cancel()
	s.cancel()

	if stream != nil {
		_ = stream.Close()
	}
	if conn != nil {
		conn.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := conn.Close(ctx); err != nil {
			slog.Warn("voice connection close failed", "guild_id", s.guildID, "error", err)
		}
	}
	if channelID != 0 && s.notifier != nil {
		s.notifier.SendFarewell(channelID)
	}

	slog.Info("session terminated", "guild_id", s.guildID)
}

func (s *Session) pushPanel() {
	s.mu.Lock()
	channelID := s.textChannelID
	s.mu.Unlock()
	if channelID == 0 || s.notifier == nil {
		return
	}
	s.notifier.UpdatePanel(channelID, s.Snapshot())
}

func (s *Session) notifyInfo(message string) {
	s.mu.Lock()
	channelID := s.textChannelID
	s.mu.Unlock()
	if channelID == 0 || s.notifier == nil {
		return
	}
	s.notifier.SendInfo(channelID, message)
}

func (s *Session) notifyError(message string) {
	s.mu.Lock()
	channelID := s.textChannelID
	s.mu.Unlock()
	if channelID == 0 || s.notifier == nil {
		return
	}
	s.notifier.SendError(channelID, message)
}
