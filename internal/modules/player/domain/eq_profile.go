package domain

// EQProfile selects the audio post-processing applied when a stream is opened.
type EQProfile int

const (
	// EQBalanced applies a gentle bass/treble lift plus loudness leveling,
	// matching the default listening profile.
	EQBalanced EQProfile = iota

	// EQHiFi leaves the signal uncolored and skips loudness leveling.
	EQHiFi
)

// String returns a human-readable representation of the EQ profile.
func (p EQProfile) String() string {
	switch p {
	case EQHiFi:
		return "hifi"
	default:
		return "balanced"
	}
}

// ParseEQProfile converts a string to an EQProfile. Unknown values map to
// EQBalanced.
func ParseEQProfile(s string) EQProfile {
	switch s {
	case "hifi":
		return EQHiFi
	default:
		return EQBalanced
	}
}
