package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harunon/kanade/internal/modules/library/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS playlists (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (guild_id, name)
);

CREATE TABLE IF NOT EXISTS playlist_tracks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	playlist_id INTEGER NOT NULL REFERENCES playlists (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	title       TEXT NOT NULL,
	page_url    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_playlist_tracks_playlist
	ON playlist_tracks (playlist_id, position);

CREATE TABLE IF NOT EXISTS guild_profiles (
	guild_id       TEXT PRIMARY KEY,
	volume_percent INTEGER NOT NULL DEFAULT 100,
	eq_profile     TEXT NOT NULL DEFAULT 'balanced'
);
`

// Store persists playlists and guild profiles in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed creates) the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent command handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreatePlaylist creates an empty playlist.
func (s *Store) CreatePlaylist(ctx context.Context, guildID snowflake.ID, name string) error {
	if err := domain.ValidatePlaylistName(name); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (guild_id, name) VALUES (?, ?)
		 ON CONFLICT (guild_id, name) DO NOTHING`,
		guildID.String(), name)
	if err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPlaylistExists
	}
	return nil
}

// DeletePlaylist removes a playlist and all its tracks.
func (s *Store) DeletePlaylist(ctx context.Context, guildID snowflake.ID, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM playlists WHERE guild_id = ? AND name = ?`,
		guildID.String(), name)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPlaylistNotFound
	}
	return nil
}

// RenamePlaylist changes a playlist's name.
func (s *Store) RenamePlaylist(ctx context.Context, guildID snowflake.ID, name, newName string) error {
	if err := domain.ValidatePlaylistName(newName); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE playlists SET name = ? WHERE guild_id = ? AND name = ?`,
		newName, guildID.String(), name)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPlaylistExists
		}
		return fmt.Errorf("failed to rename playlist: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPlaylistNotFound
	}
	return nil
}

// ListPlaylists returns the guild's playlists ordered by name.
func (s *Store) ListPlaylists(ctx context.Context, guildID snowflake.ID) ([]domain.Playlist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.created_at, COUNT(t.id)
		 FROM playlists p
		 LEFT JOIN playlist_tracks t ON t.playlist_id = p.id
		 WHERE p.guild_id = ?
		 GROUP BY p.id
		 ORDER BY p.name`,
		guildID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []domain.Playlist
	for rows.Next() {
		p := domain.Playlist{GuildID: guildID}
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.TrackCount); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// AddTrack appends a track to the end of a playlist.
func (s *Store) AddTrack(ctx context.Context, guildID snowflake.ID, name string, track domain.PlaylistTrack) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		playlistID, err := playlistIDTx(ctx, tx, guildID, name)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO playlist_tracks (playlist_id, position, title, page_url)
			 VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_tracks WHERE playlist_id = ?), ?, ?)`,
			playlistID, playlistID, track.Title, track.PageURL)
		if err != nil {
			return fmt.Errorf("failed to add track: %w", err)
		}
		return nil
	})
}

// RemoveTrack deletes the track at the 1-indexed position and closes the gap.
func (s *Store) RemoveTrack(ctx context.Context, guildID snowflake.ID, name string, position int) (*domain.PlaylistTrack, error) {
	var removed *domain.PlaylistTrack

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		playlistID, err := playlistIDTx(ctx, tx, guildID, name)
		if err != nil {
			return err
		}

		track := domain.PlaylistTrack{Position: position}
		err = tx.QueryRowContext(ctx,
			`SELECT title, page_url FROM playlist_tracks WHERE playlist_id = ? AND position = ?`,
			playlistID, position).Scan(&track.Title, &track.PageURL)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrTrackNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up track: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM playlist_tracks WHERE playlist_id = ? AND position = ?`,
			playlistID, position); err != nil {
			return fmt.Errorf("failed to remove track: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE playlist_tracks SET position = position - 1 WHERE playlist_id = ? AND position > ?`,
			playlistID, position); err != nil {
			return fmt.Errorf("failed to reindex tracks: %w", err)
		}

		removed = &track
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// MoveTrack moves the track at from to position to, shifting the tracks in
// between. Both positions are 1-indexed.
func (s *Store) MoveTrack(ctx context.Context, guildID snowflake.ID, name string, from, to int) error {
	if from == to {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		playlistID, err := playlistIDTx(ctx, tx, guildID, name)
		if err != nil {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ?`,
			playlistID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count tracks: %w", err)
		}
		if from < 1 || from > count || to < 1 || to > count {
			return domain.ErrTrackNotFound
		}

		// Park the moving row at position 0, shift the range, then land it.
		if _, err := tx.ExecContext(ctx,
			`UPDATE playlist_tracks SET position = 0 WHERE playlist_id = ? AND position = ?`,
			playlistID, from); err != nil {
			return fmt.Errorf("failed to move track: %w", err)
		}
		if from < to {
			_, err = tx.ExecContext(ctx,
				`UPDATE playlist_tracks SET position = position - 1
				 WHERE playlist_id = ? AND position > ? AND position <= ?`,
				playlistID, from, to)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE playlist_tracks SET position = position + 1
				 WHERE playlist_id = ? AND position >= ? AND position < ?`,
				playlistID, to, from)
		}
		if err != nil {
			return fmt.Errorf("failed to shift tracks: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE playlist_tracks SET position = ? WHERE playlist_id = ? AND position = 0`,
			to, playlistID); err != nil {
			return fmt.Errorf("failed to move track: %w", err)
		}
		return nil
	})
}

// ListTracks returns a playlist's tracks in order.
func (s *Store) ListTracks(ctx context.Context, guildID snowflake.ID, name string) ([]domain.PlaylistTrack, error) {
	var tracks []domain.PlaylistTrack

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		playlistID, err := playlistIDTx(ctx, tx, guildID, name)
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT position, title, page_url FROM playlist_tracks
			 WHERE playlist_id = ? ORDER BY position`,
			playlistID)
		if err != nil {
			return fmt.Errorf("failed to list tracks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var t domain.PlaylistTrack
			if err := rows.Scan(&t.Position, &t.Title, &t.PageURL); err != nil {
				return fmt.Errorf("failed to scan track: %w", err)
			}
			tracks = append(tracks, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

// Profile returns the guild's stored playback defaults.
func (s *Store) Profile(ctx context.Context, guildID snowflake.ID) (*domain.Profile, error) {
	p := domain.Profile{GuildID: guildID}
	err := s.db.QueryRowContext(ctx,
		`SELECT volume_percent, eq_profile FROM guild_profiles WHERE guild_id = ?`,
		guildID.String()).Scan(&p.VolumePercent, &p.EQProfile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &p, nil
}

// SetVolume stores the guild's default volume.
func (s *Store) SetVolume(ctx context.Context, guildID snowflake.ID, percent int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_profiles (guild_id, volume_percent) VALUES (?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET volume_percent = excluded.volume_percent`,
		guildID.String(), percent)
	if err != nil {
		return fmt.Errorf("failed to store volume: %w", err)
	}
	return nil
}

// SetEQProfile stores the guild's default equalizer profile.
func (s *Store) SetEQProfile(ctx context.Context, guildID snowflake.ID, profile string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_profiles (guild_id, eq_profile) VALUES (?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET eq_profile = excluded.eq_profile`,
		guildID.String(), profile)
	if err != nil {
		return fmt.Errorf("failed to store EQ profile: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func playlistIDTx(ctx context.Context, tx *sql.Tx, guildID snowflake.ID, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM playlists WHERE guild_id = ? AND name = ?`,
		guildID.String(), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrPlaylistNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up playlist: %w", err)
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	// Matching on the message keeps this independent of the driver's error
	// type hierarchy.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
