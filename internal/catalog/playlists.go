package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ArtworkPath string `json:"artworkPath,omitempty"`
	SongCount   int    `json:"songCount"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type PlaylistSong struct {
	Song
	Position int    `json:"position"`
	AddedAt  string `json:"addedAt"`
}

const playlistColumns = "id, name, description, artwork_path, song_count, created_at, updated_at"

func scanPlaylist(row rowScanner) (Playlist, error) {
	var playlist Playlist
	var artworkPath sql.NullString
	if err := row.Scan(
		&playlist.ID,
		&playlist.Name,
		&playlist.Description,
		&artworkPath,
		&playlist.SongCount,
		&playlist.CreatedAt,
		&playlist.UpdatedAt,
	); err != nil {
		return Playlist{}, err
	}
	playlist.ArtworkPath = artworkPath.String
	return playlist, nil
}

func (s *Store) CreatePlaylist(ctx context.Context, name string, description string) (Playlist, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Playlist{}, errors.New("playlist name is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Playlist{}, fmt.Errorf("generate playlist id: %w", err)
	}

	var playlist Playlist
	err = s.withTx(ctx, "create playlist", func(tx *sql.Tx, _ int) error {
		now := s.timestamp()
		if _, err := tx.ExecContext(
			ctx,
			"INSERT INTO playlists(id, name, description, song_count, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)",
			id.String(),
			trimmed,
			strings.TrimSpace(description),
			now,
			now,
		); err != nil {
			return fmt.Errorf("insert playlist: %w", err)
		}

		created, err := getPlaylist(ctx, tx, id.String())
		if err != nil {
			return err
		}
		playlist = created
		return nil
	})
	if err != nil {
		return Playlist{}, err
	}

	return playlist, nil
}

func (s *Store) RenamePlaylist(ctx context.Context, id string, name string) (Playlist, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Playlist{}, errors.New("playlist name is required")
	}

	var playlist Playlist
	err := s.withTx(ctx, "rename playlist", func(tx *sql.Tx, _ int) error {
		result, err := tx.ExecContext(ctx, "UPDATE playlists SET name = ?, updated_at = ? WHERE id = ?", trimmed, s.timestamp(), id)
		if err != nil {
			return fmt.Errorf("rename playlist %s: %w", id, err)
		}
		if err := requireAffected(result, ErrPlaylistNotFound); err != nil {
			return err
		}

		renamed, err := getPlaylist(ctx, tx, id)
		if err != nil {
			return err
		}
		playlist = renamed
		return nil
	})
	if err != nil {
		return Playlist{}, err
	}

	return playlist, nil
}

// DeletePlaylist removes the playlist; memberships cascade.
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	return s.withTx(ctx, "delete playlist", func(tx *sql.Tx, _ int) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete playlist %s: %w", id, err)
		}
		return requireAffected(result, ErrPlaylistNotFound)
	})
}

func (s *Store) GetPlaylist(ctx context.Context, id string) (Playlist, error) {
	database, err := s.DB()
	if err != nil {
		return Playlist{}, err
	}
	return getPlaylist(ctx, database, id)
}

func getPlaylist(ctx context.Context, q queryer, id string) (Playlist, error) {
	playlist, err := scanPlaylist(q.QueryRowContext(ctx, "SELECT "+playlistColumns+" FROM playlists WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Playlist{}, ErrPlaylistNotFound
		}
		return Playlist{}, fmt.Errorf("get playlist %s: %w", id, err)
	}
	return playlist, nil
}

func (s *Store) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	database, err := s.DB()
	if err != nil {
		return nil, err
	}

	rows, err := database.QueryContext(ctx, "SELECT "+playlistColumns+" FROM playlists ORDER BY name COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]Playlist, 0)
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist row: %w", err)
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist rows: %w", err)
	}

	return playlists, nil
}

// AddSongToPlaylist appends the song at the end of the playlist. Adding a
// song that is already a member changes nothing.
func (s *Store) AddSongToPlaylist(ctx context.Context, playlistID string, songID string) error {
	return s.withTx(ctx, "add song to playlist", func(tx *sql.Tx, _ int) error {
		if _, err := getPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}
		if _, err := getSong(ctx, tx, songID); err != nil {
			return err
		}

		now := s.timestamp()
		result, err := tx.ExecContext(
			ctx,
			`INSERT INTO playlist_songs(playlist_id, song_id, position, added_at)
			 SELECT ?, ?, COUNT(1), ? FROM playlist_songs WHERE playlist_id = ?
			 ON CONFLICT(playlist_id, song_id) DO NOTHING`,
			playlistID,
			songID,
			now,
			playlistID,
		)
		if err != nil {
			return fmt.Errorf("insert playlist song: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("read inserted playlist song count: %w", err)
		}
		if rowsAffected == 0 {
			return nil
		}

		return recountPlaylist(ctx, tx, playlistID, now)
	})
}

func (s *Store) RemoveSongFromPlaylist(ctx context.Context, playlistID string, songID string) error {
	return s.withTx(ctx, "remove song from playlist", func(tx *sql.Tx, _ int) error {
		if _, err := getPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM playlist_songs WHERE playlist_id = ? AND song_id = ?", playlistID, songID)
		if err != nil {
			return fmt.Errorf("delete playlist song: %w", err)
		}
		if err := requireAffected(result, ErrNotInPlaylist); err != nil {
			return err
		}

		if err := renumberPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}
		return recountPlaylist(ctx, tx, playlistID, s.timestamp())
	})
}

// MoveSongInPlaylist moves a member to position, clamped to the playlist
// bounds, shifting the others so positions stay dense.
func (s *Store) MoveSongInPlaylist(ctx context.Context, playlistID string, songID string, position int) error {
	return s.withTx(ctx, "move playlist song", func(tx *sql.Tx, _ int) error {
		if _, err := getPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}

		order, err := playlistOrder(ctx, tx, playlistID)
		if err != nil {
			return err
		}

		current := -1
		for index, id := range order {
			if id == songID {
				current = index
				break
			}
		}
		if current < 0 {
			return ErrNotInPlaylist
		}

		target := min(max(position, 0), len(order)-1)
		if target == current {
			return nil
		}

		order = append(order[:current], order[current+1:]...)
		order = append(order[:target], append([]string{songID}, order[target:]...)...)

		if err := writePlaylistOrder(ctx, tx, playlistID, order); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE playlists SET updated_at = ? WHERE id = ?", s.timestamp(), playlistID)
		if err != nil {
			return fmt.Errorf("touch playlist %s: %w", playlistID, err)
		}
		return nil
	})
}

func (s *Store) GetPlaylistSongs(ctx context.Context, playlistID string) ([]PlaylistSong, error) {
	database, err := s.DB()
	if err != nil {
		return nil, err
	}

	if _, err := getPlaylist(ctx, database, playlistID); err != nil {
		return nil, err
	}

	rows, err := database.QueryContext(
		ctx,
		`SELECT s.id, s.title, s.artist, s.album, s.duration_ms, s.source_uri, s.artwork_path, s.palette_json,
		        s.liked, s.play_count, s.created_at, ps.position, ps.added_at
		 FROM playlist_songs ps
		 JOIN songs s ON s.id = ps.song_id
		 WHERE ps.playlist_id = ?
		 ORDER BY ps.position, ps.added_at`,
		playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("list playlist songs: %w", err)
	}
	defer rows.Close()

	songs := make([]PlaylistSong, 0)
	for rows.Next() {
		var entry PlaylistSong
		song, err := scanSong(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &entry.Position, &entry.AddedAt)...)
		}))
		if err != nil {
			return nil, fmt.Errorf("scan playlist song row: %w", err)
		}
		entry.Song = song
		songs = append(songs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist song rows: %w", err)
	}

	return songs, nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error {
	return f(dest...)
}

func playlistsContaining(ctx context.Context, tx *sql.Tx, songID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT playlist_id FROM playlist_songs WHERE song_id = ?", songID)
	if err != nil {
		return nil, fmt.Errorf("list playlists for song %s: %w", songID, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan playlist id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist ids: %w", err)
	}

	return ids, nil
}

func playlistOrder(ctx context.Context, tx *sql.Tx, playlistID string) ([]string, error) {
	rows, err := tx.QueryContext(
		ctx,
		"SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY position, added_at, song_id",
		playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("read playlist order %s: %w", playlistID, err)
	}
	defer rows.Close()

	order := make([]string, 0)
	for rows.Next() {
		var songID string
		if err := rows.Scan(&songID); err != nil {
			return nil, fmt.Errorf("scan playlist order row: %w", err)
		}
		order = append(order, songID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist order rows: %w", err)
	}

	return order, nil
}

func writePlaylistOrder(ctx context.Context, tx *sql.Tx, playlistID string, order []string) error {
	for position, songID := range order {
		if _, err := tx.ExecContext(
			ctx,
			"UPDATE playlist_songs SET position = ? WHERE playlist_id = ? AND song_id = ? AND position <> ?",
			position,
			playlistID,
			songID,
			position,
		); err != nil {
			return fmt.Errorf("renumber playlist %s: %w", playlistID, err)
		}
	}
	return nil
}

// renumberPlaylist closes any gaps left by removals.
func renumberPlaylist(ctx context.Context, tx *sql.Tx, playlistID string) error {
	order, err := playlistOrder(ctx, tx, playlistID)
	if err != nil {
		return err
	}
	return writePlaylistOrder(ctx, tx, playlistID, order)
}

func recountPlaylist(ctx context.Context, tx *sql.Tx, playlistID string, now string) error {
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE playlists
		 SET song_count = (SELECT COUNT(1) FROM playlist_songs WHERE playlist_id = ?), updated_at = ?
		 WHERE id = ?`,
		playlistID,
		now,
		playlistID,
	); err != nil {
		return fmt.Errorf("recount playlist %s: %w", playlistID, err)
	}
	return nil
}

func requireAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected row count: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
