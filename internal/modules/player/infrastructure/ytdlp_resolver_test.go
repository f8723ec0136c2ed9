package infrastructure

import (
	"testing"
	"time"
)

func TestParseMetadataLine(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		wantOK       bool
		wantTitle    string
		wantDuration time.Duration
		wantLive     bool
	}{
		{
			name:         "full line",
			line:         "https://cdn.example/stream\thttps://example.com/watch?v=abc\tSong Title\tUploader\t213\thttps://img.example/t.jpg",
			wantOK:       true,
			wantTitle:    "Song Title",
			wantDuration: 213 * time.Second,
		},
		{
			name:      "live stream has NA duration",
			line:      "https://cdn.example/stream\thttps://example.com/watch?v=abc\tRadio\tUploader\tNA\tNA",
			wantOK:    true,
			wantTitle: "Radio",
			wantLive:  true,
		},
		{
			name:   "missing fields",
			line:   "https://cdn.example/stream\thttps://example.com/watch?v=abc\tSong",
			wantOK: false,
		},
		{
			name:   "NA title",
			line:   "https://cdn.example/stream\thttps://example.com/watch?v=abc\tNA\tUploader\t213\tthumb",
			wantOK: false,
		},
		{
			name:   "empty line",
			line:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, ok := parseMetadataLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("parseMetadataLine() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if track.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", track.Title, tt.wantTitle)
			}
			if track.Duration != tt.wantDuration {
				t.Errorf("Duration = %v, want %v", track.Duration, tt.wantDuration)
			}
			if track.IsLive() != tt.wantLive {
				t.Errorf("IsLive() = %v, want %v", track.IsLive(), tt.wantLive)
			}
		})
	}
}

func TestParsePlaylistOutput(t *testing.T) {
	stdout := "https://example.com/watch?v=a\tFirst\n" +
		"https://example.com/watch?v=b\tNA\n" +
		"garbage line\n" +
		"https://example.com/watch?v=c\tThird\n"

	entries := parsePlaylistOutput(stdout)
	if len(entries) != 2 {
		t.Fatalf("parsePlaylistOutput() returned %d entries, want 2", len(entries))
	}
	if entries[0].Title != "First" || entries[1].Title != "Third" {
		t.Errorf("entries = %+v, want First and Third", entries)
	}
}

func TestExtractorArgsLeavePlaylistExpansionIntact(t *testing.T) {
	for _, arg := range extractorArgs() {
		if arg == "--no-playlist" {
			t.Fatal("shared extractor args force single-video extraction; playlist expansion would only ever see one entry")
		}
	}
}

func TestURLClassification(t *testing.T) {
	tests := []struct {
		url          string
		wantURL      bool
		wantPlaylist bool
		wantMix      bool
	}{
		{"https://www.youtube.com/watch?v=abc", true, false, false},
		{"https://www.youtube.com/playlist?list=PL123", true, true, false},
		{"https://www.youtube.com/watch?v=abc&list=RDabc", true, true, true},
		{"never gonna give you up", false, false, false},
		{"http://example.com/watch?list=PL9", true, true, false},
	}

	for _, tt := range tests {
		if got := isURL(tt.url); got != tt.wantURL {
			t.Errorf("isURL(%q) = %v, want %v", tt.url, got, tt.wantURL)
		}
		if got := isPlaylistURL(tt.url); got != tt.wantPlaylist {
			t.Errorf("isPlaylistURL(%q) = %v, want %v", tt.url, got, tt.wantPlaylist)
		}
		if got := isMixPlaylistURL(tt.url); got != tt.wantMix {
			t.Errorf("isMixPlaylistURL(%q) = %v, want %v", tt.url, got, tt.wantMix)
		}
	}
}
