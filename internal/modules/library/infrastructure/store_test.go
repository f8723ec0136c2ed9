package infrastructure

import (
	"context"
	"errors"
	"testing"

	"github.com/disgoorg/snowflake/v2"

	"github.com/harunon/kanade/internal/modules/library/domain"
)

const testGuild = snowflake.ID(12345)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func trackTitles(tracks []domain.PlaylistTrack) []string {
	titles := make([]string, len(tracks))
	for i, tr := range tracks {
		titles[i] = tr.Title
	}
	return titles
}

func mustEqualTitles(t *testing.T, got []domain.PlaylistTrack, want ...string) {
	t.Helper()

	titles := trackTitles(got)
	if len(titles) != len(want) {
		t.Fatalf("track titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("track titles = %v, want %v", titles, want)
		}
	}
}

func TestStore_CreateAndListPlaylists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"rock", "chill"} {
		if err := store.CreatePlaylist(ctx, testGuild, name); err != nil {
			t.Fatalf("CreatePlaylist(%q) error = %v", name, err)
		}
	}

	playlists, err := store.ListPlaylists(ctx, testGuild)
	if err != nil {
		t.Fatalf("ListPlaylists() error = %v", err)
	}
	if len(playlists) != 2 {
		t.Fatalf("len(playlists) = %d, want 2", len(playlists))
	}
	// Ordered by name.
	if playlists[0].Name != "chill" || playlists[1].Name != "rock" {
		t.Errorf("playlists = %q, %q", playlists[0].Name, playlists[1].Name)
	}
	if playlists[0].TrackCount != 0 {
		t.Errorf("TrackCount = %d, want 0", playlists[0].TrackCount)
	}
}

func TestStore_CreateDuplicatePlaylist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreatePlaylist(ctx, testGuild, "rock"); err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if err := store.CreatePlaylist(ctx, testGuild, "rock"); !errors.Is(err, domain.ErrPlaylistExists) {
		t.Errorf("duplicate CreatePlaylist() error = %v, want ErrPlaylistExists", err)
	}

	// Same name in another guild is fine.
	if err := store.CreatePlaylist(ctx, snowflake.ID(999), "rock"); err != nil {
		t.Errorf("CreatePlaylist() in other guild error = %v", err)
	}
}

func TestStore_CreatePlaylistValidatesName(t *testing.T) {
	store := newTestStore(t)

	if err := store.CreatePlaylist(context.Background(), testGuild, ""); err == nil {
		t.Error("CreatePlaylist(\"\") succeeded, want error")
	}
}

func TestStore_AddAndListTracks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreatePlaylist(ctx, testGuild, "rock"); err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	for _, title := range []string{"a", "b", "c"} {
		err := store.AddTrack(ctx, testGuild, "rock", domain.PlaylistTrack{
			Title:   title,
			PageURL: "https://example.com/" + title,
		})
		if err != nil {
			t.Fatalf("AddTrack(%q) error = %v", title, err)
		}
	}

	tracks, err := store.ListTracks(ctx, testGuild, "rock")
	if err != nil {
		t.Fatalf("ListTracks() error = %v", err)
	}
	mustEqualTitles(t, tracks, "a", "b", "c")
	for i, tr := range tracks {
		if tr.Position != i+1 {
			t.Errorf("tracks[%d].Position = %d, want %d", i, tr.Position, i+1)
		}
	}
}

func TestStore_AddTrackToMissingPlaylist(t *testing.T) {
	store := newTestStore(t)

	err := store.AddTrack(context.Background(), testGuild, "nope", domain.PlaylistTrack{Title: "a", PageURL: "u"})
	if !errors.Is(err, domain.ErrPlaylistNotFound) {
		t.Errorf("AddTrack() error = %v, want ErrPlaylistNotFound", err)
	}
}

func TestStore_RemoveTrackReindexes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.CreatePlaylist(ctx, testGuild, "rock")
	for _, title := range []string{"a", "b", "c"} {
		store.AddTrack(ctx, testGuild, "rock", domain.PlaylistTrack{Title: title, PageURL: "u"})
	}

	removed, err := store.RemoveTrack(ctx, testGuild, "rock", 2)
	if err != nil {
		t.Fatalf("RemoveTrack() error = %v", err)
	}
	if removed.Title != "b" {
		t.Errorf("removed.Title = %q, want b", removed.Title)
	}

	tracks, err := store.ListTracks(ctx, testGuild, "rock")
	if err != nil {
		t.Fatalf("ListTracks() error = %v", err)
	}
	mustEqualTitles(t, tracks, "a", "c")
	if tracks[1].Position != 2 {
		t.Errorf("tracks[1].Position = %d, want 2", tracks[1].Position)
	}

	if _, err := store.RemoveTrack(ctx, testGuild, "rock", 10); !errors.Is(err, domain.ErrTrackNotFound) {
		t.Errorf("RemoveTrack(10) error = %v, want ErrTrackNotFound", err)
	}
}

func TestStore_MoveTrack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.CreatePlaylist(ctx, testGuild, "rock")
	for _, title := range []string{"a", "b", "c", "d"} {
		store.AddTrack(ctx, testGuild, "rock", domain.PlaylistTrack{Title: title, PageURL: "u"})
	}

	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{name: "forward", from: 1, to: 3, want: []string{"b", "c", "a", "d"}},
		{name: "backward", from: 3, to: 1, want: []string{"a", "b", "c", "d"}},
		{name: "same position", from: 2, to: 2, want: []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.MoveTrack(ctx, testGuild, "rock", tt.from, tt.to); err != nil {
				t.Fatalf("MoveTrack(%d, %d) error = %v", tt.from, tt.to, err)
			}
			tracks, err := store.ListTracks(ctx, testGuild, "rock")
			if err != nil {
				t.Fatalf("ListTracks() error = %v", err)
			}
			mustEqualTitles(t, tracks, tt.want...)
		})
	}

	if err := store.MoveTrack(ctx, testGuild, "rock", 1, 99); !errors.Is(err, domain.ErrTrackNotFound) {
		t.Errorf("MoveTrack(1, 99) error = %v, want ErrTrackNotFound", err)
	}
}

func TestStore_RenamePlaylist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.CreatePlaylist(ctx, testGuild, "rock")
	store.CreatePlaylist(ctx, testGuild, "chill")

	if err := store.RenamePlaylist(ctx, testGuild, "rock", "metal"); err != nil {
		t.Fatalf("RenamePlaylist() error = %v", err)
	}
	if err := store.RenamePlaylist(ctx, testGuild, "nope", "x"); !errors.Is(err, domain.ErrPlaylistNotFound) {
		t.Errorf("RenamePlaylist(missing) error = %v, want ErrPlaylistNotFound", err)
	}
	if err := store.RenamePlaylist(ctx, testGuild, "metal", "chill"); !errors.Is(err, domain.ErrPlaylistExists) {
		t.Errorf("RenamePlaylist(to taken name) error = %v, want ErrPlaylistExists", err)
	}
}

func TestStore_DeletePlaylistCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.CreatePlaylist(ctx, testGuild, "rock")
	store.AddTrack(ctx, testGuild, "rock", domain.PlaylistTrack{Title: "a", PageURL: "u"})

	if err := store.DeletePlaylist(ctx, testGuild, "rock"); err != nil {
		t.Fatalf("DeletePlaylist() error = %v", err)
	}
	if err := store.DeletePlaylist(ctx, testGuild, "rock"); !errors.Is(err, domain.ErrPlaylistNotFound) {
		t.Errorf("second DeletePlaylist() error = %v, want ErrPlaylistNotFound", err)
	}
	if _, err := store.ListTracks(ctx, testGuild, "rock"); !errors.Is(err, domain.ErrPlaylistNotFound) {
		t.Errorf("ListTracks() after delete error = %v, want ErrPlaylistNotFound", err)
	}
}

func TestStore_ProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	profile, err := store.Profile(ctx, testGuild)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile != nil {
		t.Fatalf("Profile() = %+v, want nil for unset guild", profile)
	}

	if err := store.SetVolume(ctx, testGuild, 150); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if err := store.SetEQProfile(ctx, testGuild, "hifi"); err != nil {
		t.Fatalf("SetEQProfile() error = %v", err)
	}

	profile, err = store.Profile(ctx, testGuild)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.VolumePercent != 150 || profile.EQProfile != "hifi" {
		t.Errorf("profile = %+v, want volume 150 and eq hifi", profile)
	}

	// Updates overwrite without clobbering the other column.
	if err := store.SetVolume(ctx, testGuild, 80); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	profile, _ = store.Profile(ctx, testGuild)
	if profile.VolumePercent != 80 || profile.EQProfile != "hifi" {
		t.Errorf("profile after update = %+v", profile)
	}
}
