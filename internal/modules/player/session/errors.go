package session

import "errors"

var (
	// ErrNotConnected is returned when an operation requires a live voice
	// connection and the session has none.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrNothingPlaying is returned when an operation requires an active
	// track and the session is idle.
	ErrNothingPlaying = errors.New("nothing is playing")

	// ErrAlreadyPaused is returned by Pause when playback is already paused.
	ErrAlreadyPaused = errors.New("playback is already paused")

	// ErrNotPaused is returned by Resume when playback is not paused.
	ErrNotPaused = errors.New("playback is not paused")

	// ErrNoHistory is returned by Previous when no track has finished yet.
	ErrNoHistory = errors.New("no previous track")

	// ErrInvalidPosition is returned when a queue position is out of range.
	ErrInvalidPosition = errors.New("invalid queue position")

	// ErrIngestBusy is returned when a bulk enqueue is already in flight.
	ErrIngestBusy = errors.New("another playlist is being added")

	// ErrVolumeOutOfRange is returned for volume values outside 0 to 200
	// percent.
	ErrVolumeOutOfRange = errors.New("volume must be between 0 and 200")

	// ErrTerminated is returned when the session has been torn down.
	ErrTerminated = errors.New("session terminated")
)
