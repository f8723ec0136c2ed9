package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunon/kanade/internal/modules/player/domain"
)

// run is the session's persistent playback loop. It is the sole consumer of
// the queue and the only goroutine that mutates the current-track slot.
// Each iteration: settle the previous track into queue or history, pop the
// next one or idle until woken, open its stream, start playback, and park
// until the finish signal arrives.
func (s *Session) run() {
	defer close(s.done)
	defer s.Cleanup()

	for {
		if s.ctx.Err() != nil {
			return
		}

		s.songFinished.Clear()
		s.queueAdded.Clear()

		s.settleFinished()

		next, ok := s.queue.PopFront()
		if !ok {
			if !s.idle() {
				return
			}
			continue
		}

		s.idleLeaveTask.Cancel()

		s.mu.Lock()
		s.current = next
		volume := s.volume
		profile := s.eqProfile
		s.mu.Unlock()

		stream, err := s.resolver.OpenStream(s.ctx, next, volume, profile)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			slog.Warn("failed to open stream",
				"guild_id", s.guildID, "title", next.Title, "error", err)
			s.notifyError("Could not play: " + next.Title)
			s.mu.Lock()
			s.current = nil
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		stopped := s.stopRequested
		conn := s.conn
		s.mu.Unlock()
		if stopped {
			// A stop landed while the stream was being prepared; the popped
			// track must not start.
			_ = stream.Close()
			continue
		}
		if conn == nil || !conn.Alive() {
			_ = stream.Close()
			slog.Warn("voice connection gone before playback", "guild_id", s.guildID)
			return
		}

		now := time.Now()
		s.mu.Lock()
		s.stream = stream
		s.playing = true
		s.paused = false
		s.finishSpent = false
		s.playbackStart = now
		s.pausedAt = time.Time{}
		s.pausedTotal = 0
		if next.IsLive() {
			s.expectedEnd = time.Time{}
		} else {
			s.expectedEnd = now.Add(next.Duration)
		}
		s.mu.Unlock()

		slog.Info("now playing",
			"guild_id", s.guildID, "title", next.Title, "duration", next.Duration)
		s.pushPanel()
		s.startPanelUpdater()

		if err := conn.Play(s.ctx, stream, s.onPlaybackEnd); err != nil {
			slog.Warn("playback start failed",
				"guild_id", s.guildID, "title", next.Title, "error", err)
			s.notifyError("Could not play: " + next.Title)
			s.panelTask.Cancel()
			s.mu.Lock()
			s.playing = false
			s.stream = nil
			s.current = nil
			s.mu.Unlock()
			_ = stream.Close()
			continue
		}

		select {
		case <-s.songFinished.Done():
		case <-s.ctx.Done():
			conn.Stop()
		}

		s.panelTask.Cancel()
		s.mu.Lock()
		s.playing = false
		s.paused = false
		s.stream = nil
		s.mu.Unlock()
		_ = stream.Close()
	}
}

// settleFinished routes the just-finished track into its next container.
// Exactly one destination applies: stopped tracks are discarded, previous
// rewinds both the current track and the last finished one to the queue
// front, skips always land in history, and natural completions follow the
// loop mode.
func (s *Session) settleFinished() {
	s.mu.Lock()
	current := s.current
	prev := s.previousRequested
	skip := s.skipRequested
	stop := s.stopRequested
	mode := s.loopMode
	s.previousRequested = false
	s.skipRequested = false
	s.stopRequested = false
	s.current = nil
	s.mu.Unlock()

	switch {
	case stop:
		// Discarded: stop leaves queue and history both empty.
	case prev:
		if current != nil {
			s.queue.PushFront(current)
		}
		if last, ok := s.history.PopLast(); ok {
			s.queue.PushFront(last)
		}
	case skip:
		if current != nil {
			s.history.Push(current)
		}
	default:
		if current == nil {
			return
		}
		switch mode {
		case domain.LoopTrack:
			s.queue.PushFront(current)
		case domain.LoopQueue:
			s.queue.Append(current)
		default:
			s.history.Push(current)
		}
	}
}

// idle parks the loop until new tracks arrive. Returns false when the
// session context was cancelled. A wake that is not a rewind starts a fresh
// listening session: history is dropped and the loop mode resets.
func (s *Session) idle() bool {
	s.mu.Lock()
	s.playing = false
	s.paused = false
	s.current = nil
	channelID := s.textChannelID
	s.mu.Unlock()

	if channelID != 0 {
		s.pushPanel()
		s.armIdleLeave()
	}

	select {
	case <-s.queueAdded.Done():
	case <-s.ctx.Done():
		return false
	}

	// The reset runs at wake rather than on entering idle so the history
	// stays browsable, and Previous usable, for as long as the session
	// sits idle.
	s.mu.Lock()
	rewinding := s.previousRequested
	s.mu.Unlock()
	if !rewinding {
		s.history.Clear()
		s.mu.Lock()
		s.loopMode = domain.LoopOff
		s.mu.Unlock()
	}
	return true
}

// onPlaybackEnd is the completion callback handed to the voice connection.
// It classifies the signal and at most posts songFinished; all state
// transitions stay in the loop. User-initiated aborts and live streams are
// always accepted. A signal arriving well before the track's expected end is
// treated as spurious: it is dropped, and the connection is probed after a
// short grace delay in case the transport actually died.
func (s *Session) onPlaybackEnd(playErr error) {
	if playErr != nil {
		slog.Warn("playback ended with error", "guild_id", s.guildID, "error", playErr)
	}

	s.mu.Lock()
	requested := s.skipRequested || s.stopRequested
	expected := s.expectedEnd
	s.mu.Unlock()

	if requested || expected.IsZero() {
		s.songFinished.Set()
		return
	}

	if remaining := time.Until(expected); remaining > s.opts.SpuriousSignalThreshold {
		slog.Info("ignoring premature completion signal",
			"guild_id", s.guildID, "remaining", remaining)
		s.mu.Lock()
		s.finishSpent = true
		s.mu.Unlock()
		go s.verifyConnectionAlive()
		return
	}

	s.songFinished.Set()
}

// verifyConnectionAlive waits out the grace delay and tears the session down
// if the voice connection is truly gone.
func (s *Session) verifyConnectionAlive() {
	select {
	case <-time.After(s.opts.LivenessGraceDelay):
	case <-s.ctx.Done():
		return
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil || !conn.Alive() {
		slog.Error("voice connection lost during playback", "guild_id", s.guildID)
		s.Cleanup()
	}
}

// armIdleLeave starts the idle auto-leave countdown. Re-arming replaces any
// previous countdown.
func (s *Session) armIdleLeave() {
	s.idleLeaveTask.Start(s.ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.IdleLeaveTimeout):
		}

		s.mu.Lock()
		busy := s.playing
		s.mu.Unlock()
		if busy {
			return
		}
		slog.Info("leaving after idle timeout", "guild_id", s.guildID)
		s.Cleanup()
	})
}

// startPanelUpdater refreshes the now-playing panel periodically while a
// track is active, keeping the elapsed display roughly current.
func (s *Session) startPanelUpdater() {
	s.panelTask.Start(s.ctx, func(ctx context.Context) {
		ticker := time.NewTicker(s.opts.PanelRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			s.mu.Lock()
			active := s.playing
			s.mu.Unlock()
			if !active {
				return
			}
			s.pushPanel()
		}
	})
}
