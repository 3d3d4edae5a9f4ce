// Package stats summarises the catalog: library size, listening totals
// derived from play counts, and the most played songs and artists.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const defaultTopLimit = 5

const maxTopLimit = 25

type Overview struct {
	SongCount       int          `json:"songCount"`
	LikedCount      int          `json:"likedCount"`
	TotalDurationMS int64        `json:"totalDurationMs"`
	TotalPlays      int64        `json:"totalPlays"`
	TotalPlayedMS   int64        `json:"totalPlayedMs"`
	TracksPlayed    int          `json:"tracksPlayed"`
	TopTracks       []TrackStat  `json:"topTracks"`
	TopArtists      []ArtistStat `json:"topArtists"`
}

type TrackStat struct {
	SongID      string  `json:"songId"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album"`
	ArtworkPath *string `json:"artworkPath,omitempty"`
	PlayCount   int64   `json:"playCount"`
	PlayedMS    int64   `json:"playedMs"`
	Liked       bool    `json:"liked"`
}

type ArtistStat struct {
	Name       string `json:"name"`
	PlayCount  int64  `json:"playCount"`
	PlayedMS   int64  `json:"playedMs"`
	TrackCount int    `json:"trackCount"`
}

type Service struct {
	db *sql.DB
}

func NewService(database *sql.DB) *Service {
	return &Service{db: database}
}

// GetOverview computes library totals and the top limit songs and artists by
// play count. Played time is estimated as play count times song duration.
func (s *Service) GetOverview(ctx context.Context, limit int) (Overview, error) {
	if s.db == nil {
		return Overview{}, nil
	}

	normalizedLimit := normalizeTopLimit(limit)

	overview := Overview{}
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(1),
			COALESCE(SUM(liked), 0),
			COALESCE(SUM(duration_ms), 0),
			COALESCE(SUM(play_count), 0),
			COALESCE(SUM(play_count * duration_ms), 0),
			COUNT(CASE WHEN play_count > 0 THEN 1 END)
		FROM songs
	`).Scan(
		&overview.SongCount,
		&overview.LikedCount,
		&overview.TotalDurationMS,
		&overview.TotalPlays,
		&overview.TotalPlayedMS,
		&overview.TracksPlayed,
	); err != nil {
		return Overview{}, fmt.Errorf("read library totals: %w", err)
	}

	tracks, err := s.readTopTracks(ctx, normalizedLimit)
	if err != nil {
		return Overview{}, err
	}
	overview.TopTracks = tracks

	artists, err := s.readTopArtists(ctx, normalizedLimit)
	if err != nil {
		return Overview{}, err
	}
	overview.TopArtists = artists

	return overview, nil
}

func (s *Service) readTopTracks(ctx context.Context, limit int) ([]TrackStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id,
			COALESCE(NULLIF(TRIM(title), ''), 'Unknown Title') AS track_title,
			artist,
			album,
			artwork_path,
			play_count,
			play_count * duration_ms AS played_ms,
			liked
		FROM songs
		WHERE play_count > 0
		ORDER BY play_count DESC, played_ms DESC, LOWER(track_title), id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("read top tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]TrackStat, 0, limit)
	for rows.Next() {
		var item TrackStat
		var artworkPath sql.NullString
		var liked int
		if scanErr := rows.Scan(
			&item.SongID,
			&item.Title,
			&item.Artist,
			&item.Album,
			&artworkPath,
			&item.PlayCount,
			&item.PlayedMS,
			&liked,
		); scanErr != nil {
			return nil, fmt.Errorf("scan top track row: %w", scanErr)
		}
		item.ArtworkPath = nullableStringPointer(artworkPath)
		item.Liked = liked == 1
		tracks = append(tracks, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate top track rows: %w", rowsErr)
	}

	return tracks, nil
}

// readTopArtists groups by the song's artist text case-insensitively, the
// same folding the artist merge uses.
func (s *Service) readTopArtists(ctx context.Context, limit int) ([]ArtistStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			MIN(COALESCE(NULLIF(TRIM(artist), ''), 'Unknown Artist')) AS artist_name,
			COALESCE(SUM(play_count), 0) AS play_count,
			COALESCE(SUM(play_count * duration_ms), 0) AS played_ms,
			COUNT(1) AS track_count
		FROM songs
		GROUP BY LOWER(TRIM(artist))
		HAVING COALESCE(SUM(play_count), 0) > 0
		ORDER BY play_count DESC, played_ms DESC, LOWER(artist_name)
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("read top artists: %w", err)
	}
	defer rows.Close()

	artists := make([]ArtistStat, 0, limit)
	for rows.Next() {
		var item ArtistStat
		if scanErr := rows.Scan(&item.Name, &item.PlayCount, &item.PlayedMS, &item.TrackCount); scanErr != nil {
			return nil, fmt.Errorf("scan top artist row: %w", scanErr)
		}
		artists = append(artists, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate top artist rows: %w", rowsErr)
	}

	return artists, nil
}

func normalizeTopLimit(value int) int {
	if value <= 0 {
		return defaultTopLimit
	}
	if value > maxTopLimit {
		return maxTopLimit
	}

	return value
}

func nullableStringPointer(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}

	trimmed := strings.TrimSpace(value.String)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}
