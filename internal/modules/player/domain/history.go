package domain

import "sync"

// DefaultHistoryCapacity bounds how many finished tracks are retained for
// "previous" navigation.
const DefaultHistoryCapacity = 50

// History is a bounded record of finished tracks, oldest first. When the
// capacity is exceeded the oldest entry is evicted. Safe for concurrent use.
type History struct {
	mu       sync.Mutex
	capacity int
	tracks   []*Track
}

// NewHistory creates a History bounded to capacity entries. A non-positive
// capacity falls back to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

// Len returns the number of recorded tracks.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tracks)
}

// IsEmpty returns true if no tracks are recorded.
func (h *History) IsEmpty() bool {
	return h.Len() == 0
}

// Push records a finished track, evicting the oldest entry when full.
func (h *History) Push(track *Track) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tracks = append(h.tracks, track)
	if len(h.tracks) > h.capacity {
		h.tracks = h.tracks[len(h.tracks)-h.capacity:]
	}
}

// PopLast removes and returns the most recently recorded track.
// Returns nil, false if the history is empty.
func (h *History) PopLast() (*Track, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.tracks) == 0 {
		return nil, false
	}
	track := h.tracks[len(h.tracks)-1]
	h.tracks = h.tracks[:len(h.tracks)-1]
	return track, true
}

// Clear removes all recorded tracks.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracks = nil
}

// List returns a copy of the recorded tracks, oldest first.
func (h *History) List() []*Track {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]*Track, len(h.tracks))
	copy(result, h.tracks)
	return result
}
