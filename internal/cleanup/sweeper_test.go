package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/catalog"
	"cadence/internal/storage"
	"cadence/internal/storage/storagetest"
)

func newStoreForTest(t *testing.T) *catalog.Store {
	t.Helper()

	store := catalog.New(catalog.Options{Path: filepath.Join(t.TempDir(), "library.db")})
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func addSong(t *testing.T, store *catalog.Store, input catalog.NewSong) catalog.Song {
	t.Helper()

	if input.Title == "" {
		input.Title = filepath.Base(input.SourceURI)
	}
	song, err := store.AddSong(context.Background(), input)
	require.NoError(t, err)
	return song
}

func writeFile(t *testing.T, path string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func songURIs(t *testing.T, store *catalog.Store) []string {
	t.Helper()

	uris, err := store.ListSongURIs(context.Background())
	require.NoError(t, err)
	return lo.Keys(uris)
}

func TestRunCleanupRemovesOrphanedSongsAndKeepsPlaylistsConsistent(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()
	musicDir := t.TempDir()

	present := addSong(t, store, catalog.NewSong{SourceURI: writeFile(t, filepath.Join(musicDir, "present.mp3"))})
	gone := addSong(t, store, catalog.NewSong{SourceURI: filepath.Join(musicDir, "gone.mp3")})
	last := addSong(t, store, catalog.NewSong{SourceURI: writeFile(t, filepath.Join(musicDir, "last.mp3"))})
	scoped := addSong(t, store, catalog.NewSong{SourceURI: "content://media/tree/primary:Music/missing.mp3"})

	playlist, err := store.CreatePlaylist(ctx, "Mix", "")
	require.NoError(t, err)
	for _, song := range []catalog.Song{present, gone, last, scoped} {
		require.NoError(t, store.AddSongToPlaylist(ctx, playlist.ID, song.ID))
	}

	sweeper := NewSweeper(Options{Catalog: store, Provider: storage.NewLocalProvider(), ArtworkDir: t.TempDir()})

	report, err := sweeper.RunCleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Audio.Checked)
	assert.Equal(t, 1, report.Audio.Removed)

	assert.ElementsMatch(t, []string{present.SourceURI, last.SourceURI, scoped.SourceURI}, songURIs(t, store))

	reloaded, err := store.GetPlaylist(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.SongCount)

	members, err := store.GetPlaylistSongs(ctx, playlist.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	for index, member := range members {
		assert.Equal(t, index, member.Position)
	}

	again, err := sweeper.RunCleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Audio.Removed)
}

func TestImageSweepClearsMissingArtworkAndFallsBack(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()
	artworkDir := t.TempDir()

	kept := addSong(t, store, catalog.NewSong{SourceURI: "/m/1.mp3", ArtworkPath: writeFile(t, filepath.Join(artworkDir, "kept.jpg"))})
	relative := addSong(t, store, catalog.NewSong{SourceURI: "/m/2.mp3", ArtworkPath: "relative.png"})
	writeFile(t, filepath.Join(artworkDir, "relative.png"))
	missing := addSong(t, store, catalog.NewSong{
		SourceURI:   "/m/3.mp3",
		ArtworkPath: filepath.Join(artworkDir, "missing.jpg"),
		Palette:     []string{"#101010"},
	})

	cachedArtist, err := store.UpsertArtist(ctx, catalog.ArtistDetails{
		Name:        "Cached",
		ImageURL:    filepath.Join(artworkDir, "artists", "cached.jpg"),
		FallbackURL: "https://images.example/cached.jpg",
	})
	require.NoError(t, err)
	remoteArtist, err := store.UpsertArtist(ctx, catalog.ArtistDetails{Name: "Remote", ImageURL: "https://images.example/remote.jpg"})
	require.NoError(t, err)

	writeFile(t, filepath.Join(artworkDir, "kept__player.avif"))
	writeFile(t, filepath.Join(artworkDir, "stale__player.avif"))
	writeFile(t, filepath.Join(artworkDir, "stale__grid.avif"))

	sweeper := NewSweeper(Options{Catalog: store, Provider: storage.NewLocalProvider(), ArtworkDir: artworkDir})

	report, err := sweeper.ImageSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, ImageReport{
		SongsChecked:    3,
		SongsCleared:    1,
		ArtistsChecked:  1,
		ArtistsFallback: 1,
		VariantsRemoved: 2,
	}, report)

	reloaded, err := store.GetSong(ctx, missing.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.ArtworkPath)
	assert.Equal(t, []string{"#101010"}, reloaded.Palette)

	for _, song := range []catalog.Song{kept, relative} {
		reloaded, err := store.GetSong(ctx, song.ID)
		require.NoError(t, err)
		assert.Equal(t, song.ArtworkPath, reloaded.ArtworkPath)
	}

	artists, err := store.ListArtists(ctx)
	require.NoError(t, err)
	byID := lo.KeyBy(artists, func(artist catalog.Artist) string {
		return artist.ID
	})
	assert.Equal(t, "https://images.example/cached.jpg", byID[cachedArtist.ID].ImageURL)
	assert.Equal(t, remoteArtist.ImageURL, byID[remoteArtist.ID].ImageURL)

	assert.FileExists(t, filepath.Join(artworkDir, "kept__player.avif"))
	assert.NoFileExists(t, filepath.Join(artworkDir, "stale__player.avif"))

	again, err := sweeper.ImageSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.SongsCleared)
	assert.Zero(t, again.ArtistsFallback)
	assert.Zero(t, again.VariantsRemoved)
}

func TestContentSweepChecksOnlyScopedURIs(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	provider := storagetest.NewMemoryProvider()
	provider.AddFile("content://media/tree/primary:Music/here.mp3", []byte("x"))

	here := addSong(t, store, catalog.NewSong{SourceURI: "content://media/tree/primary:Music/here.mp3"})
	addSong(t, store, catalog.NewSong{SourceURI: "content://media/tree/primary:Music/gone.mp3"})
	local := addSong(t, store, catalog.NewSong{SourceURI: "/not/in/memory.mp3"})

	sweeper := NewSweeper(Options{Catalog: store, Provider: provider})

	report, err := sweeper.ContentSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, AudioReport{Checked: 2, Removed: 1}, report)
	assert.ElementsMatch(t, []string{here.SourceURI, local.SourceURI}, songURIs(t, store))
}

func TestAudioSweepKeepsSongsThatCannotBeChecked(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	addSong(t, store, catalog.NewSong{SourceURI: "file://%zz/broken.mp3"})

	sweeper := NewSweeper(Options{Catalog: store, Provider: storage.NewLocalProvider()})

	report, err := sweeper.AudioSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AudioReport{Checked: 1, Unverified: 1}, report)
	assert.Len(t, songURIs(t, store), 1)
}

func TestRunSweepsImmediatelyAndStopsWithContext(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	addSong(t, store, catalog.NewSong{SourceURI: filepath.Join(t.TempDir(), "gone.mp3")})

	sweeper := NewSweeper(Options{Catalog: store, Provider: storage.NewLocalProvider()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sweeper.Run(ctx, time.Hour)
	}()

	require.Eventually(t, func() bool {
		count, err := store.CountSongs(context.Background())
		return err == nil && count == 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Error(t, sweeper.Run(context.Background(), 0))
}
