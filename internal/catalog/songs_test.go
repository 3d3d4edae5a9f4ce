package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSongForTest(t *testing.T, store *Store, uri string, title string) Song {
	t.Helper()

	song, err := store.AddSong(context.Background(), NewSong{Title: title, SourceURI: uri})
	require.NoError(t, err)
	return song
}

func TestAddSongAppliesDefaultsAndRoundTripsPalette(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	song, err := store.AddSong(ctx, NewSong{
		Title:      "Teardrop",
		SourceURI:  "/music/teardrop.mp3",
		DurationMS: 330000,
		Palette:    []string{"#112233", "", "#445566"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, song.ID)
	assert.Equal(t, UnknownArtist, song.Artist)
	assert.Equal(t, UnknownAlbum, song.Album)
	assert.Equal(t, []string{"#112233", "#445566"}, song.Palette)
	assert.False(t, song.Liked)
	assert.Zero(t, song.PlayCount)

	loaded, err := store.GetSong(ctx, song.ID)
	require.NoError(t, err)
	assert.Equal(t, song, loaded)

	_, err = store.AddSong(ctx, NewSong{Title: "again", SourceURI: "/music/teardrop.mp3"})
	assert.ErrorIs(t, err, ErrSongExists)

	count, err := store.CountSongs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdateSongChangesOnlyGivenFields(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()
	song := addSongForTest(t, store, "/music/a.mp3", "A")

	album := "Mezzanine"
	artwork := "/cache/a.jpg"
	updated, err := store.UpdateSong(ctx, song.ID, SongUpdate{Album: &album, ArtworkPath: &artwork})
	require.NoError(t, err)
	assert.Equal(t, "A", updated.Title)
	assert.Equal(t, "Mezzanine", updated.Album)
	assert.Equal(t, "/cache/a.jpg", updated.ArtworkPath)

	cleared := ""
	updated, err = store.UpdateSong(ctx, song.ID, SongUpdate{ArtworkPath: &cleared})
	require.NoError(t, err)
	assert.Empty(t, updated.ArtworkPath)

	_, err = store.UpdateSong(ctx, "missing", SongUpdate{Album: &album})
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestToggleLikeAndPlayCounts(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()
	song := addSongForTest(t, store, "/music/a.mp3", "A")

	liked, err := store.ToggleLike(ctx, song.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = store.ToggleLike(ctx, song.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	_, err = store.ToggleLike(ctx, "missing")
	assert.ErrorIs(t, err, ErrSongNotFound)

	require.NoError(t, store.IncrementPlayCount(ctx, song.ID))
	require.NoError(t, store.IncrementPlayCount(ctx, song.ID))
	require.NoError(t, store.IncrementPlayCount(ctx, "deleted-while-playing"))

	loaded, err := store.GetSong(ctx, song.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.PlayCount)

	require.NoError(t, store.ResetPlayCount(ctx, song.ID))
	loaded, err = store.GetSong(ctx, song.ID)
	require.NoError(t, err)
	assert.Zero(t, loaded.PlayCount)
}

func TestDeleteSongCascadesAndRecountsPlaylists(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	first := addSongForTest(t, store, "/music/1.mp3", "One")
	second := addSongForTest(t, store, "/music/2.mp3", "Two")
	third := addSongForTest(t, store, "/music/3.mp3", "Three")

	playlist, err := store.CreatePlaylist(ctx, "Mix", "")
	require.NoError(t, err)
	for _, song := range []Song{first, second, third} {
		require.NoError(t, store.AddSongToPlaylist(ctx, playlist.ID, song.ID))
	}

	require.NoError(t, store.DeleteSong(ctx, second.ID))
	assert.ErrorIs(t, store.DeleteSong(ctx, second.ID), ErrSongNotFound)

	songs, err := store.GetPlaylistSongs(ctx, playlist.ID)
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, first.ID, songs[0].ID)
	assert.Equal(t, third.ID, songs[1].ID)
	assertPlaylistConsistent(t, store, playlist.ID)
}

func TestDeleteSongsIgnoresUnknownIDs(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()
	song := addSongForTest(t, store, "/music/1.mp3", "One")

	removed, err := store.DeleteSongs(ctx, []string{song.ID, "nope", song.ID, ""})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestListSongURIs(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	first := addSongForTest(t, store, "/music/1.mp3", "One")
	second := addSongForTest(t, store, "content://media/2.mp3", "Two")

	uris, err := store.ListSongURIs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"/music/1.mp3":          first.ID,
		"content://media/2.mp3": second.ID,
	}, uris)
}
