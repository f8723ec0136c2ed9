package domain

// LoopMode represents the loop mode for queue playback.
type LoopMode int

const (
	LoopOff   LoopMode = iota // Default: no looping
	LoopTrack                 // Repeat current track indefinitely
	LoopQueue                 // Requeue finished tracks at the back
)

// String returns a human-readable representation of the loop mode.
func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return "off"
	}
}

// ParseLoopMode converts a string to a LoopMode. Unknown values map to LoopOff.
func ParseLoopMode(s string) LoopMode {
	switch s {
	case "track":
		return LoopTrack
	case "queue":
		return LoopQueue
	default:
		return LoopOff
	}
}
