package domain

import "errors"

var (
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrPlaylistExists   = errors.New("a playlist with that name already exists")
	ErrTrackNotFound    = errors.New("no track at that position")
)
