package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

type Song struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album"`
	DurationMS  int64    `json:"durationMs"`
	SourceURI   string   `json:"sourceUri"`
	ArtworkPath string   `json:"artworkPath,omitempty"`
	Palette     []string `json:"palette,omitempty"`
	Liked       bool     `json:"liked"`
	PlayCount   int64    `json:"playCount"`
	CreatedAt   string   `json:"createdAt"`
}

type NewSong struct {
	Title       string
	Artist      string
	Album       string
	DurationMS  int64
	SourceURI   string
	ArtworkPath string
	Palette     []string
}

// SongUpdate carries the fields to change; nil pointers are left alone. An
// empty ArtworkPath clears the artwork.
type SongUpdate struct {
	Title       *string
	Artist      *string
	Album       *string
	DurationMS  *int64
	ArtworkPath *string
	Palette     *[]string
}

const songColumns = "id, title, artist, album, duration_ms, source_uri, artwork_path, palette_json, liked, play_count, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (Song, error) {
	var song Song
	var artworkPath sql.NullString
	var paletteJSON sql.NullString
	var likedInt int

	if err := row.Scan(
		&song.ID,
		&song.Title,
		&song.Artist,
		&song.Album,
		&song.DurationMS,
		&song.SourceURI,
		&artworkPath,
		&paletteJSON,
		&likedInt,
		&song.PlayCount,
		&song.CreatedAt,
	); err != nil {
		return Song{}, err
	}

	song.ArtworkPath = artworkPath.String
	song.Liked = likedInt == 1

	palette, err := decodePalette(paletteJSON)
	if err != nil {
		return Song{}, fmt.Errorf("decode palette for song %s: %w", song.ID, err)
	}
	song.Palette = palette

	return song, nil
}

func decodePalette(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}

	var palette []string
	if err := json.Unmarshal([]byte(raw.String), &palette); err != nil {
		return nil, err
	}
	return palette, nil
}

func encodePalette(palette []string) (any, error) {
	colors := lo.Filter(palette, func(value string, _ int) bool {
		return strings.TrimSpace(value) != ""
	})
	if len(colors) == 0 {
		return nil, nil
	}

	encoded, err := json.Marshal(colors)
	if err != nil {
		return nil, fmt.Errorf("encode palette: %w", err)
	}
	return string(encoded), nil
}

func (s *Store) AddSong(ctx context.Context, input NewSong) (Song, error) {
	sourceURI := strings.TrimSpace(input.SourceURI)
	if sourceURI == "" {
		return Song{}, errors.New("source uri is required")
	}
	if input.DurationMS < 0 {
		return Song{}, errors.New("duration must not be negative")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = sourceURI
	}
	artist := strings.TrimSpace(input.Artist)
	if artist == "" {
		artist = UnknownArtist
	}
	album := strings.TrimSpace(input.Album)
	if album == "" {
		album = UnknownAlbum
	}

	paletteJSON, err := encodePalette(input.Palette)
	if err != nil {
		return Song{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Song{}, fmt.Errorf("generate song id: %w", err)
	}

	var song Song
	err = s.withTx(ctx, "add song", func(tx *sql.Tx, _ int) error {
		now := s.timestamp()
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO songs(id, title, artist, album, duration_ms, source_uri, artwork_path, palette_json, liked, play_count, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)`,
			id.String(),
			title,
			artist,
			album,
			input.DurationMS,
			sourceURI,
			nullableString(input.ArtworkPath),
			paletteJSON,
			now,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrSongExists, sourceURI)
			}
			return fmt.Errorf("insert song: %w", err)
		}

		if err := ensureArtist(ctx, tx, artist, now); err != nil {
			return err
		}

		inserted, err := getSong(ctx, tx, id.String())
		if err != nil {
			return err
		}
		song = inserted
		return nil
	})
	if err != nil {
		return Song{}, err
	}

	return song, nil
}

func (s *Store) UpdateSong(ctx context.Context, id string, update SongUpdate) (Song, error) {
	assignments := make([]string, 0, 6)
	args := make([]any, 0, 7)

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return Song{}, errors.New("title must not be empty")
		}
		assignments = append(assignments, "title = ?")
		args = append(args, title)
	}
	if update.Artist != nil {
		artist := strings.TrimSpace(*update.Artist)
		if artist == "" {
			artist = UnknownArtist
		}
		assignments = append(assignments, "artist = ?")
		args = append(args, artist)
	}
	if update.Album != nil {
		album := strings.TrimSpace(*update.Album)
		if album == "" {
			album = UnknownAlbum
		}
		assignments = append(assignments, "album = ?")
		args = append(args, album)
	}
	if update.DurationMS != nil {
		if *update.DurationMS < 0 {
			return Song{}, errors.New("duration must not be negative")
		}
		assignments = append(assignments, "duration_ms = ?")
		args = append(args, *update.DurationMS)
	}
	if update.ArtworkPath != nil {
		assignments = append(assignments, "artwork_path = ?")
		args = append(args, nullableString(*update.ArtworkPath))
	}
	if update.Palette != nil {
		paletteJSON, err := encodePalette(*update.Palette)
		if err != nil {
			return Song{}, err
		}
		assignments = append(assignments, "palette_json = ?")
		args = append(args, paletteJSON)
	}

	if len(assignments) == 0 {
		return s.GetSong(ctx, id)
	}

	var song Song
	err := s.withTx(ctx, "update song", func(tx *sql.Tx, _ int) error {
		result, err := tx.ExecContext(
			ctx,
			"UPDATE songs SET "+strings.Join(assignments, ", ")+" WHERE id = ?",
			append(args, id)...,
		)
		if err != nil {
			return fmt.Errorf("update song %s: %w", id, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("read updated song count: %w", err)
		}
		if rowsAffected == 0 {
			return ErrSongNotFound
		}

		if update.Artist != nil {
			if err := ensureArtist(ctx, tx, strings.TrimSpace(*update.Artist), s.timestamp()); err != nil {
				return err
			}
		}

		updated, err := getSong(ctx, tx, id)
		if err != nil {
			return err
		}
		song = updated
		return nil
	})
	if err != nil {
		return Song{}, err
	}

	return song, nil
}

// DeleteSong removes the song and its playlist memberships, then
// renumbers and recounts every playlist that contained it.
func (s *Store) DeleteSong(ctx context.Context, id string) error {
	removed, err := s.DeleteSongs(ctx, []string{id})
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrSongNotFound
	}
	return nil
}

// DeleteSongs removes every listed song in one transaction and returns how
// many existed. Unknown ids are ignored.
func (s *Store) DeleteSongs(ctx context.Context, ids []string) (int, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return 0, nil
	}

	removed := 0
	err := s.withTx(ctx, "delete songs", func(tx *sql.Tx, _ int) error {
		removed = 0
		affectedPlaylists := make(map[string]struct{})

		for _, id := range ids {
			playlistIDs, err := playlistsContaining(ctx, tx, id)
			if err != nil {
				return err
			}

			result, err := tx.ExecContext(ctx, "DELETE FROM songs WHERE id = ?", id)
			if err != nil {
				return fmt.Errorf("delete song %s: %w", id, err)
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("read deleted song count: %w", err)
			}
			if rowsAffected == 0 {
				continue
			}

			removed++
			for _, playlistID := range playlistIDs {
				affectedPlaylists[playlistID] = struct{}{}
			}
		}

		now := s.timestamp()
		for playlistID := range affectedPlaylists {
			if err := renumberPlaylist(ctx, tx, playlistID); err != nil {
				return err
			}
			if err := recountPlaylist(ctx, tx, playlistID, now); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// ToggleLike flips the liked flag and returns the new value.
func (s *Store) ToggleLike(ctx context.Context, id string) (bool, error) {
	liked := false
	err := s.withTx(ctx, "toggle like", func(tx *sql.Tx, _ int) error {
		result, err := tx.ExecContext(ctx, "UPDATE songs SET liked = 1 - liked WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("toggle like %s: %w", id, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("read toggled song count: %w", err)
		}
		if rowsAffected == 0 {
			return ErrSongNotFound
		}

		var likedInt int
		if err := tx.QueryRowContext(ctx, "SELECT liked FROM songs WHERE id = ?", id).Scan(&likedInt); err != nil {
			return fmt.Errorf("read liked flag %s: %w", id, err)
		}
		liked = likedInt == 1
		return nil
	})

	return liked, err
}

// IncrementPlayCount bumps the play count. A missing song is not an error:
// the song may have been deleted while it was playing.
func (s *Store) IncrementPlayCount(ctx context.Context, id string) error {
	return s.withTx(ctx, "increment play count", func(tx *sql.Tx, _ int) error {
		if _, err := tx.ExecContext(ctx, "UPDATE songs SET play_count = play_count + 1 WHERE id = ?", id); err != nil {
			return fmt.Errorf("increment play count %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) ResetPlayCount(ctx context.Context, id string) error {
	return s.withTx(ctx, "reset play count", func(tx *sql.Tx, _ int) error {
		result, err := tx.ExecContext(ctx, "UPDATE songs SET play_count = 0 WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("reset play count %s: %w", id, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("read reset song count: %w", err)
		}
		if rowsAffected == 0 {
			return ErrSongNotFound
		}
		return nil
	})
}

func (s *Store) GetSong(ctx context.Context, id string) (Song, error) {
	database, err := s.DB()
	if err != nil {
		return Song{}, err
	}
	return getSong(ctx, database, id)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSong(ctx context.Context, q queryer, id string) (Song, error) {
	song, err := scanSong(q.QueryRowContext(ctx, "SELECT "+songColumns+" FROM songs WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Song{}, ErrSongNotFound
		}
		return Song{}, fmt.Errorf("get song %s: %w", id, err)
	}
	return song, nil
}

func (s *Store) ListSongs(ctx context.Context) ([]Song, error) {
	database, err := s.DB()
	if err != nil {
		return nil, err
	}

	rows, err := database.QueryContext(ctx, "SELECT "+songColumns+" FROM songs ORDER BY title COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	songs := make([]Song, 0)
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song row: %w", err)
		}
		songs = append(songs, song)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate song rows: %w", err)
	}

	return songs, nil
}

// ListSongURIs maps every stored source URI to its song id.
func (s *Store) ListSongURIs(ctx context.Context) (map[string]string, error) {
	database, err := s.DB()
	if err != nil {
		return nil, err
	}

	rows, err := database.QueryContext(ctx, "SELECT source_uri, id FROM songs")
	if err != nil {
		return nil, fmt.Errorf("list song uris: %w", err)
	}
	defer rows.Close()

	uris := make(map[string]string)
	for rows.Next() {
		var uri, id string
		if err := rows.Scan(&uri, &id); err != nil {
			return nil, fmt.Errorf("scan song uri row: %w", err)
		}
		uris[uri] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate song uri rows: %w", err)
	}

	return uris, nil
}

func (s *Store) CountSongs(ctx context.Context) (int, error) {
	database, err := s.DB()
	if err != nil {
		return 0, err
	}

	var count int
	if err := database.QueryRowContext(ctx, "SELECT COUNT(1) FROM songs").Scan(&count); err != nil {
		return 0, fmt.Errorf("count songs: %w", err)
	}
	return count, nil
}
