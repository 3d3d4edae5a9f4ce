package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Artist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl,omitempty"`
	FallbackURL string `json:"fallbackUrl,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Listeners   *int64 `json:"listeners,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

type ArtistDetails struct {
	Name        string
	ImageURL    string
	FallbackURL string
	Summary     string
	Listeners   *int64
}

type MergeResult struct {
	Groups  int
	Removed int
}

const artistColumns = "id, name, image_url, fallback_url, summary, listeners, created_at"

func scanArtist(row rowScanner) (Artist, error) {
	var artist Artist
	var imageURL, fallbackURL, summary sql.NullString
	var listeners sql.NullInt64
	if err := row.Scan(&artist.ID, &artist.Name, &imageURL, &fallbackURL, &summary, &listeners, &artist.CreatedAt); err != nil {
		return Artist{}, err
	}

	artist.ImageURL = imageURL.String
	artist.FallbackURL = fallbackURL.String
	artist.Summary = summary.String
	if listeners.Valid {
		value := listeners.Int64
		artist.Listeners = &value
	}
	return artist, nil
}

func (a Artist) populatedFields() int {
	count := 0
	for _, value := range []string{a.ImageURL, a.FallbackURL, a.Summary} {
		if value != "" {
			count++
		}
	}
	if a.Listeners != nil {
		count++
	}
	return count
}

func normalizeArtistName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ensureArtist lazily records an artist seen during a scan. Matching is
// case-insensitive so scans do not create duplicates themselves.
func ensureArtist(ctx context.Context, tx *sql.Tx, name string, now string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == UnknownArtist {
		return nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate artist id: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO artists(id, name, created_at)
		 SELECT ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM artists WHERE name = ? COLLATE NOCASE)`,
		id.String(),
		trimmed,
		now,
		trimmed,
	); err != nil {
		return fmt.Errorf("ensure artist %s: %w", trimmed, err)
	}

	return nil
}

// UpsertArtist stores fetched artist details under the exact trimmed name.
// Empty fields never overwrite stored values.
func (s *Store) UpsertArtist(ctx context.Context, details ArtistDetails) (Artist, error) {
	name := strings.TrimSpace(details.Name)
	if name == "" {
		return Artist{}, errors.New("artist name is required")
	}

	var artist Artist
	err := s.withTx(ctx, "upsert artist", func(tx *sql.Tx, _ int) error {
		existing, err := scanArtist(tx.QueryRowContext(ctx, "SELECT "+artistColumns+" FROM artists WHERE name = ? ORDER BY created_at, id LIMIT 1", name))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("generate artist id: %w", err)
			}
			if _, err := tx.ExecContext(
				ctx,
				"INSERT INTO artists(id, name, image_url, fallback_url, summary, listeners, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
				id.String(),
				name,
				nullableString(details.ImageURL),
				nullableString(details.FallbackURL),
				nullableString(details.Summary),
				nullableInt64(details.Listeners),
				s.timestamp(),
			); err != nil {
				return fmt.Errorf("insert artist %s: %w", name, err)
			}
			existing.ID = id.String()
		case err != nil:
			return fmt.Errorf("get artist %s: %w", name, err)
		default:
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE artists SET
				   image_url = COALESCE(?, image_url),
				   fallback_url = COALESCE(?, fallback_url),
				   summary = COALESCE(?, summary),
				   listeners = COALESCE(?, listeners)
				 WHERE id = ?`,
				nullableString(details.ImageURL),
				nullableString(details.FallbackURL),
				nullableString(details.Summary),
				nullableInt64(details.Listeners),
				existing.ID,
			); err != nil {
				return fmt.Errorf("update artist %s: %w", name, err)
			}
		}

		stored, err := scanArtist(tx.QueryRowContext(ctx, "SELECT "+artistColumns+" FROM artists WHERE id = ?", existing.ID))
		if err != nil {
			return fmt.Errorf("read artist %s: %w", name, err)
		}
		artist = stored
		return nil
	})
	if err != nil {
		return Artist{}, err
	}

	return artist, nil
}

// SetArtistImage replaces the image reference; an empty value clears it.
func (s *Store) SetArtistImage(ctx context.Context, id string, imageURL string) error {
	return s.withTx(ctx, "set artist image", func(tx *sql.Tx, _ int) error {
		result, err := tx.ExecContext(ctx, "UPDATE artists SET image_url = ? WHERE id = ?", nullableString(imageURL), id)
		if err != nil {
			return fmt.Errorf("set artist image %s: %w", id, err)
		}
		return requireAffected(result, ErrArtistNotFound)
	})
}

func (s *Store) ListArtists(ctx context.Context) ([]Artist, error) {
	database, err := s.DB()
	if err != nil {
		return nil, err
	}
	return listArtists(ctx, database)
}

func listArtists(ctx context.Context, q queryer) ([]Artist, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+artistColumns+" FROM artists ORDER BY name COLLATE NOCASE, created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	defer rows.Close()

	artists := make([]Artist, 0)
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artist row: %w", err)
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artist rows: %w", err)
	}

	return artists, nil
}

// MergeDuplicateArtists collapses artist rows whose names match after
// trimming and lower-casing. The survivor is the row with the most
// populated optional fields, then the oldest, then the smallest id. Gaps in
// the survivor are filled from the removed rows. The merge is a heuristic;
// running it again is a no-op.
func (s *Store) MergeDuplicateArtists(ctx context.Context) (MergeResult, error) {
	var result MergeResult
	err := s.withTx(ctx, "merge artists", func(tx *sql.Tx, _ int) error {
		result = MergeResult{}

		artists, err := listArtists(ctx, tx)
		if err != nil {
			return err
		}

		groups := lo.GroupBy(artists, func(artist Artist) string {
			return normalizeArtistName(artist.Name)
		})

		keys := lo.Keys(groups)
		sort.Strings(keys)

		for _, key := range keys {
			group := groups[key]
			if len(group) < 2 {
				continue
			}

			winner, losers := pickArtistSurvivor(group)
			merged := fillArtistGaps(winner, losers)

			if _, err := tx.ExecContext(
				ctx,
				"UPDATE artists SET image_url = ?, fallback_url = ?, summary = ?, listeners = ? WHERE id = ?",
				nullableString(merged.ImageURL),
				nullableString(merged.FallbackURL),
				nullableString(merged.Summary),
				nullableInt64(merged.Listeners),
				merged.ID,
			); err != nil {
				return fmt.Errorf("update merged artist %s: %w", merged.ID, err)
			}

			for _, loser := range losers {
				if _, err := tx.ExecContext(ctx, "DELETE FROM artists WHERE id = ?", loser.ID); err != nil {
					return fmt.Errorf("delete duplicate artist %s: %w", loser.ID, err)
				}
			}

			result.Groups++
			result.Removed += len(losers)
		}

		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}

	if result.Removed > 0 {
		s.logger.Info("merged duplicate artists", "groups", result.Groups, "removed", result.Removed)
	}
	return result, nil
}

func pickArtistSurvivor(group []Artist) (Artist, []Artist) {
	ordered := append([]Artist(nil), group...)
	sort.SliceStable(ordered, func(i, j int) bool {
		left, right := ordered[i], ordered[j]
		if left.populatedFields() != right.populatedFields() {
			return left.populatedFields() > right.populatedFields()
		}
		if left.CreatedAt != right.CreatedAt {
			return left.CreatedAt < right.CreatedAt
		}
		return left.ID < right.ID
	})
	return ordered[0], ordered[1:]
}

func fillArtistGaps(winner Artist, losers []Artist) Artist {
	merged := winner
	for _, loser := range losers {
		if merged.ImageURL == "" {
			merged.ImageURL = loser.ImageURL
		}
		if merged.FallbackURL == "" {
			merged.FallbackURL = loser.FallbackURL
		}
		if merged.Summary == "" {
			merged.Summary = loser.Summary
		}
		if merged.Listeners == nil {
			merged.Listeners = loser.Listeners
		}
	}
	return merged
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}
