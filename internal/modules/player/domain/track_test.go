package domain

import (
	"testing"
	"time"
)

func TestTrack_FormattedDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{name: "live", duration: 0, want: "LIVE"},
		{name: "seconds", duration: 42 * time.Second, want: "00:42"},
		{name: "minutes", duration: 3*time.Minute + 5*time.Second, want: "03:05"},
		{name: "hours", duration: time.Hour + 2*time.Minute + 3*time.Second, want: "01:02:03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Track{Duration: tt.duration}
			if got := tr.FormattedDuration(); got != tt.want {
				t.Errorf("FormattedDuration() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDuration_Negative(t *testing.T) {
	if got := FormatDuration(-5 * time.Second); got != "00:00" {
		t.Errorf("FormatDuration(-5s) = %q, want %q", got, "00:00")
	}
}
