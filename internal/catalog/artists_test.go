package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestAddSongCreatesArtistOnce(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	_, err := store.AddSong(ctx, NewSong{Title: "Uprising", Artist: "Muse", SourceURI: "/m/1.mp3"})
	require.NoError(t, err)
	_, err = store.AddSong(ctx, NewSong{Title: "Hysteria", Artist: "muse", SourceURI: "/m/2.mp3"})
	require.NoError(t, err)
	_, err = store.AddSong(ctx, NewSong{Title: "Untitled", SourceURI: "/m/3.mp3"})
	require.NoError(t, err)

	artists, err := store.ListArtists(ctx)
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Equal(t, "Muse", artists[0].Name)
}

func TestMergeDuplicateArtistsKeepsRichestRowAndIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.now = steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	listeners := int64(1200)
	_, err := store.UpsertArtist(ctx, ArtistDetails{Name: "Queen", ImageURL: "/cache/queen.jpg"})
	require.NoError(t, err)
	_, err = store.UpsertArtist(ctx, ArtistDetails{Name: " queen "})
	require.NoError(t, err)
	richest, err := store.UpsertArtist(ctx, ArtistDetails{Name: "QUEEN", Summary: "British rock band", Listeners: &listeners})
	require.NoError(t, err)
	_, err = store.UpsertArtist(ctx, ArtistDetails{Name: "Blur"})
	require.NoError(t, err)

	result, err := store.MergeDuplicateArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Groups: 1, Removed: 2}, result)

	artists, err := store.ListArtists(ctx)
	require.NoError(t, err)
	require.Len(t, artists, 2)

	merged := artists[1]
	assert.Equal(t, richest.ID, merged.ID)
	assert.Equal(t, "QUEEN", merged.Name)
	assert.Equal(t, "/cache/queen.jpg", merged.ImageURL)
	assert.Equal(t, "British rock band", merged.Summary)
	require.NotNil(t, merged.Listeners)
	assert.Equal(t, int64(1200), *merged.Listeners)

	again, err := store.MergeDuplicateArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{}, again)

	after, err := store.ListArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, artists, after)
}

func TestMergeDuplicateArtistsTieBreaksOnAgeThenID(t *testing.T) {
	t.Parallel()

	older := Artist{ID: "b", Name: "Air", CreatedAt: "2024-01-01T00:00:00.000Z"}
	newer := Artist{ID: "a", Name: "air", CreatedAt: "2024-01-02T00:00:00.000Z"}
	winner, losers := pickArtistSurvivor([]Artist{newer, older})
	assert.Equal(t, "b", winner.ID)
	require.Len(t, losers, 1)

	sameAgeLeft := Artist{ID: "z", Name: "Air", CreatedAt: "2024-01-01T00:00:00.000Z"}
	sameAgeRight := Artist{ID: "m", Name: "AIR", CreatedAt: "2024-01-01T00:00:00.000Z"}
	winner, _ = pickArtistSurvivor([]Artist{sameAgeLeft, sameAgeRight})
	assert.Equal(t, "m", winner.ID)
}

func TestUpsertArtistKeepsExistingFields(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	first, err := store.UpsertArtist(ctx, ArtistDetails{Name: "Portishead", ImageURL: "https://img/1.jpg", FallbackURL: "https://img/fallback.jpg"})
	require.NoError(t, err)

	second, err := store.UpsertArtist(ctx, ArtistDetails{Name: "Portishead", Summary: "Bristol"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "https://img/1.jpg", second.ImageURL)
	assert.Equal(t, "Bristol", second.Summary)

	require.NoError(t, store.SetArtistImage(ctx, first.ID, second.FallbackURL))
	artists, err := store.ListArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://img/fallback.jpg", artists[0].ImageURL)

	assert.ErrorIs(t, store.SetArtistImage(ctx, "missing", ""), ErrArtistNotFound)
}

func TestThemeStateRoundTripAndAccentCleared(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	state, err := store.GetThemeState(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeModeSystem, state.Mode)

	song := addSongForTest(t, store, "/m/accent.mp3", "Accent")
	saved, err := store.SaveThemeState(ctx, ThemeState{Mode: "DARK", AccentSongID: song.ID, Palette: []string{"#000000"}})
	require.NoError(t, err)
	assert.Equal(t, ThemeModeDark, saved.Mode)
	assert.Equal(t, song.ID, saved.AccentSongID)
	assert.Equal(t, []string{"#000000"}, saved.Palette)

	require.NoError(t, store.DeleteSong(ctx, song.ID))
	state, err = store.GetThemeState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.AccentSongID)

	_, err = store.SaveThemeState(ctx, ThemeState{AccentSongID: "missing"})
	assert.ErrorIs(t, err, ErrSongNotFound)
}
