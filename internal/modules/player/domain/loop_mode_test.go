package domain

import "testing"

func TestLoopMode_String(t *testing.T) {
	tests := []struct {
		mode LoopMode
		want string
	}{
		{LoopOff, "off"},
		{LoopTrack, "track"},
		{LoopQueue, "queue"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("LoopMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		input string
		want  LoopMode
	}{
		{"off", LoopOff},
		{"track", LoopTrack},
		{"queue", LoopQueue},
		{"garbage", LoopOff},
		{"", LoopOff},
	}

	for _, tt := range tests {
		if got := ParseLoopMode(tt.input); got != tt.want {
			t.Errorf("ParseLoopMode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseEQProfile(t *testing.T) {
	tests := []struct {
		input string
		want  EQProfile
	}{
		{"balanced", EQBalanced},
		{"hifi", EQHiFi},
		{"garbage", EQBalanced},
	}

	for _, tt := range tests {
		if got := ParseEQProfile(tt.input); got != tt.want {
			t.Errorf("ParseEQProfile(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
