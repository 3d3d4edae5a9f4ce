package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const (
	ThemeModeSystem = "system"
	ThemeModeLight  = "light"
	ThemeModeDark   = "dark"
)

type ThemeState struct {
	Mode         string   `json:"mode"`
	AccentSongID string   `json:"accentSongId,omitempty"`
	Palette      []string `json:"palette,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty"`
}

func normalizeThemeMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ThemeModeLight:
		return ThemeModeLight
	case ThemeModeDark:
		return ThemeModeDark
	default:
		return ThemeModeSystem
	}
}

// GetThemeState returns the stored theme or the system default.
func (s *Store) GetThemeState(ctx context.Context) (ThemeState, error) {
	database, err := s.DB()
	if err != nil {
		return ThemeState{}, err
	}

	var state ThemeState
	var accentSongID, paletteJSON sql.NullString
	err = database.QueryRowContext(
		ctx,
		"SELECT mode, accent_song_id, palette_json, updated_at FROM theme_state WHERE id = 1",
	).Scan(&state.Mode, &accentSongID, &paletteJSON, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ThemeState{Mode: ThemeModeSystem}, nil
		}
		return ThemeState{}, fmt.Errorf("get theme state: %w", err)
	}

	state.AccentSongID = accentSongID.String
	state.Palette, err = decodePalette(paletteJSON)
	if err != nil {
		return ThemeState{}, fmt.Errorf("decode theme palette: %w", err)
	}

	return state, nil
}

// SaveThemeState stores the theme. A non-empty AccentSongID must name an
// existing song; it is cleared automatically if that song is deleted.
func (s *Store) SaveThemeState(ctx context.Context, state ThemeState) (ThemeState, error) {
	paletteJSON, err := encodePalette(state.Palette)
	if err != nil {
		return ThemeState{}, err
	}

	err = s.withTx(ctx, "save theme state", func(tx *sql.Tx, _ int) error {
		if state.AccentSongID != "" {
			if _, err := getSong(ctx, tx, state.AccentSongID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO theme_state(id, mode, accent_song_id, palette_json, updated_at) VALUES (1, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   mode = excluded.mode,
			   accent_song_id = excluded.accent_song_id,
			   palette_json = excluded.palette_json,
			   updated_at = excluded.updated_at`,
			normalizeThemeMode(state.Mode),
			nullableString(state.AccentSongID),
			paletteJSON,
			s.timestamp(),
		); err != nil {
			return fmt.Errorf("save theme state: %w", err)
		}
		return nil
	})
	if err != nil {
		return ThemeState{}, err
	}

	return s.GetThemeState(ctx)
}
