package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPlaylistConsistent(t *testing.T, store *Store, playlistID string) {
	t.Helper()

	database, err := store.DB()
	require.NoError(t, err)

	var members, stored int
	require.NoError(t, database.QueryRow("SELECT COUNT(1) FROM playlist_songs WHERE playlist_id = ?", playlistID).Scan(&members))
	require.NoError(t, database.QueryRow("SELECT song_count FROM playlists WHERE id = ?", playlistID).Scan(&stored))
	assert.Equal(t, members, stored, "song_count must match membership rows")

	rows, err := database.Query("SELECT position FROM playlist_songs WHERE playlist_id = ? ORDER BY position", playlistID)
	require.NoError(t, err)
	defer rows.Close()

	expected := 0
	for rows.Next() {
		var position int
		require.NoError(t, rows.Scan(&position))
		assert.Equal(t, expected, position, "positions must be dense")
		expected++
	}
	require.NoError(t, rows.Err())
}

func TestPlaylistMembershipKeepsDenseOrder(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	songs := []Song{
		addSongForTest(t, store, "/music/1.mp3", "One"),
		addSongForTest(t, store, "/music/2.mp3", "Two"),
		addSongForTest(t, store, "/music/3.mp3", "Three"),
		addSongForTest(t, store, "/music/4.mp3", "Four"),
	}

	playlist, err := store.CreatePlaylist(ctx, "  Road Trip ", "summer")
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", playlist.Name)

	for _, song := range songs {
		require.NoError(t, store.AddSongToPlaylist(ctx, playlist.ID, song.ID))
	}
	require.NoError(t, store.AddSongToPlaylist(ctx, playlist.ID, songs[0].ID), "re-adding is a no-op")

	loaded, err := store.GetPlaylist(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.SongCount)
	assertPlaylistConsistent(t, store, playlist.ID)

	require.NoError(t, store.RemoveSongFromPlaylist(ctx, playlist.ID, songs[1].ID))
	assertPlaylistConsistent(t, store, playlist.ID)
	assert.ErrorIs(t, store.RemoveSongFromPlaylist(ctx, playlist.ID, songs[1].ID), ErrNotInPlaylist)

	require.NoError(t, store.MoveSongInPlaylist(ctx, playlist.ID, songs[3].ID, 0))
	assertPlaylistConsistent(t, store, playlist.ID)

	members, err := store.GetPlaylistSongs(ctx, playlist.ID)
	require.NoError(t, err)
	order := make([]string, 0, len(members))
	for _, member := range members {
		order = append(order, member.ID)
	}
	assert.Equal(t, []string{songs[3].ID, songs[0].ID, songs[2].ID}, order)
	assert.Equal(t, 0, members[0].Position)

	require.NoError(t, store.MoveSongInPlaylist(ctx, playlist.ID, songs[3].ID, 99))
	members, err = store.GetPlaylistSongs(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, songs[3].ID, members[len(members)-1].ID)
	assertPlaylistConsistent(t, store, playlist.ID)
}

func TestPlaylistErrors(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()
	song := addSongForTest(t, store, "/music/1.mp3", "One")

	_, err := store.CreatePlaylist(ctx, " ", "")
	assert.Error(t, err)

	assert.ErrorIs(t, store.AddSongToPlaylist(ctx, "missing", song.ID), ErrPlaylistNotFound)

	playlist, err := store.CreatePlaylist(ctx, "Mix", "")
	require.NoError(t, err)
	assert.ErrorIs(t, store.AddSongToPlaylist(ctx, playlist.ID, "missing"), ErrSongNotFound)

	_, err = store.GetPlaylistSongs(ctx, "missing")
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestRenameAndDeletePlaylist(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()
	song := addSongForTest(t, store, "/music/1.mp3", "One")

	playlist, err := store.CreatePlaylist(ctx, "Old", "")
	require.NoError(t, err)
	require.NoError(t, store.AddSongToPlaylist(ctx, playlist.ID, song.ID))

	renamed, err := store.RenamePlaylist(ctx, playlist.ID, "New")
	require.NoError(t, err)
	assert.Equal(t, "New", renamed.Name)

	require.NoError(t, store.DeletePlaylist(ctx, playlist.ID))
	assert.ErrorIs(t, store.DeletePlaylist(ctx, playlist.ID), ErrPlaylistNotFound)

	database, err := store.DB()
	require.NoError(t, err)
	var members int
	require.NoError(t, database.QueryRow("SELECT COUNT(1) FROM playlist_songs").Scan(&members))
	assert.Zero(t, members)

	playlists, err := store.ListPlaylists(ctx)
	require.NoError(t, err)
	assert.Empty(t, playlists)
}
