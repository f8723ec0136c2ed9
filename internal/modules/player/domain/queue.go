package domain

import "sync"

// Queue is a FIFO track queue safe for concurrent use. The playback loop is
// its only consumer (front pops), while user commands and background
// ingestion tasks append and rearrange from other goroutines.
type Queue struct {
	mu     sync.Mutex
	tracks []*Track
}

// NewQueue creates a new empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Append adds tracks to the back of the queue.
func (q *Queue) Append(tracks ...*Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = append(q.tracks, tracks...)
}

// PushFront adds a track to the front of the queue, so it plays next.
func (q *Queue) PushFront(track *Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = append([]*Track{track}, q.tracks...)
}

// PopFront removes and returns the head of the queue.
// Returns nil, false if the queue is empty.
func (q *Queue) PopFront() (*Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return nil, false
	}
	track := q.tracks[0]
	q.tracks = q.tracks[1:]
	return track, true
}

// RemoveAt removes and returns the track at the given 0-based index.
// Returns nil, false if the index is out of bounds.
func (q *Queue) RemoveAt(index int) (*Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.tracks) {
		return nil, false
	}
	track := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
	return track, true
}

// Move relocates the track at 0-based index from to index to, using
// pop-and-reinsert semantics: the track is removed first, shifting later
// tracks down, then inserted at to within the shortened slice. Both indices
// are validated against the original length; nothing is mutated on failure.
func (q *Queue) Move(from, to int) (*Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if from < 0 || from >= len(q.tracks) || to < 0 || to >= len(q.tracks) {
		return nil, false
	}

	track := q.tracks[from]
	rest := append(q.tracks[:from], q.tracks[from+1:]...)
	if to > len(rest) {
		to = len(rest)
	}
	q.tracks = append(rest[:to], append([]*Track{track}, rest[to:]...)...)
	return track, true
}

// Clear removes all tracks from the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = nil
}

// List returns a copy of all tracks in queue order.
func (q *Queue) List() []*Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]*Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}
