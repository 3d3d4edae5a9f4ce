package engine

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/catalog"
	"cadence/internal/config"
	"cadence/internal/library"
	"cadence/internal/palette"
	"cadence/internal/storage"
	"cadence/internal/storage/storagetest"
	"cadence/internal/tags/tagstest"
)

func newEngineForTest(t *testing.T, provider storage.Provider) *Engine {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(dir, "library.db")
	cfg.ArtworkDir = filepath.Join(dir, "artwork")

	engine := New(Options{Config: cfg, Provider: provider})
	t.Cleanup(func() {
		_ = engine.Close()
	})
	return engine
}

func TestOperationsRequireInitialize(t *testing.T) {
	t.Parallel()

	engine := newEngineForTest(t, storagetest.NewMemoryProvider())
	ctx := context.Background()

	_, err := engine.Scan(ctx, nil)
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = engine.GetAllSongs(ctx)
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = engine.AddFolder(ctx, "/Music")
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, engine.SaveSetting(ctx, "shuffle", true), ErrNotInitialized)
	_, err = engine.RunCleanup(ctx)
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = engine.Overview(ctx, 5)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitializeIsLatched(t *testing.T) {
	t.Parallel()

	engine := newEngineForTest(t, storagetest.NewMemoryProvider())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for index := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[index] = engine.Initialize(context.Background())
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, engine.Initialize(context.Background()))

	_, err := engine.GetAllSongs(context.Background())
	require.NoError(t, err)
}

func TestInitializeDropsScopedSongsThatVanished(t *testing.T) {
	t.Parallel()

	provider := storagetest.NewMemoryProvider()
	provider.AddFile("content://tree/Music/kept.mp3", []byte("x"))
	engine := newEngineForTest(t, provider)

	seed := catalog.New(catalog.Options{Path: engine.Config().DatabasePath})
	require.NoError(t, seed.Init(context.Background()))
	for _, uri := range []string{"content://tree/Music/kept.mp3", "content://tree/Music/gone.mp3"} {
		_, err := seed.AddSong(context.Background(), catalog.NewSong{Title: filepath.Base(uri), SourceURI: uri})
		require.NoError(t, err)
	}
	require.NoError(t, seed.Close())

	require.NoError(t, engine.Initialize(context.Background()))

	songs, err := engine.GetAllSongs(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "content://tree/Music/kept.mp3", songs[0].SourceURI)
}

func TestLibraryFlow(t *testing.T) {
	t.Parallel()

	provider := storagetest.NewMemoryProvider()
	provider.AddFile("/Music/a.mp3", tagstest.ID3v23("Alpha", "Band", "First"))
	provider.AddFile("/Music/b.mp3", tagstest.ID3v23("Beta", "Band", "First"))
	provider.AddFile("/Music/broken.mp3", tagstest.Garbage(3, 32<<10))

	engine := newEngineForTest(t, provider)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	folder, err := engine.AddFolder(ctx, "/Music")
	require.NoError(t, err)
	again, err := engine.AddFolder(ctx, "/Music")
	require.NoError(t, err)
	assert.Equal(t, folder.ID, again.ID)

	folders, err := engine.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)

	summary, err := engine.Scan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Added)
	assert.Equal(t, 1, summary.Degraded)

	second, err := engine.Scan(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, second.Added)

	status, err := engine.ScanStatus()
	require.NoError(t, err)
	assert.False(t, status.Running)

	songs, err := engine.GetAllSongs(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 3)

	playlist, err := engine.CreatePlaylist(ctx, "Favourites", "")
	require.NoError(t, err)
	for _, song := range songs {
		require.NoError(t, engine.AddSongToPlaylist(ctx, playlist.ID, song.ID))
	}

	liked, err := engine.ToggleLike(ctx, songs[0].ID)
	require.NoError(t, err)
	assert.True(t, liked)
	require.NoError(t, engine.IncrementPlayCount(ctx, songs[0].ID))
	require.NoError(t, engine.IncrementPlayCount(ctx, "missing"))

	overview, err := engine.Overview(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, overview.SongCount)
	assert.Equal(t, 1, overview.LikedCount)
	assert.EqualValues(t, 1, overview.TotalPlays)
	require.Len(t, overview.TopTracks, 1)
	assert.Equal(t, songs[0].ID, overview.TopTracks[0].SongID)

	require.NoError(t, engine.DeleteSong(ctx, songs[1].ID))
	members, err := engine.GetPlaylistSongs(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	reloaded, err := engine.GetPlaylist(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.SongCount)

	require.NoError(t, engine.SaveSettingsBatch(ctx, []catalog.Setting{
		{Key: "shuffle", Value: true},
		{Key: "crossfade", Value: false},
	}))
	value, err := engine.GetSetting(ctx, "shuffle")
	require.NoError(t, err)
	assert.True(t, value)

	require.NoError(t, engine.SetFolderEnabled(ctx, folder.ID, false))
	disabled, err := engine.Scan(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, disabled.FoldersScanned)

	require.NoError(t, engine.RemoveFolder(ctx, folder.ID))
	require.ErrorIs(t, engine.RemoveFolder(ctx, folder.ID), library.ErrFolderNotFound)

	remaining, err := engine.GetAllSongs(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestAddFolderSurfacesDeniedAccess(t *testing.T) {
	t.Parallel()

	provider := storagetest.NewMemoryProvider()
	provider.AddDir("/Locked")
	provider.Deny("/Locked")

	engine := newEngineForTest(t, provider)
	require.NoError(t, engine.Initialize(context.Background()))

	_, err := engine.AddFolder(context.Background(), "/Locked")
	require.Error(t, err)
	assert.True(t, storage.IsPermissionDenied(err))

	folders, err := engine.ListFolders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestDeleteSongKeepsSharedArtwork(t *testing.T) {
	t.Parallel()

	engine := newEngineForTest(t, storagetest.NewMemoryProvider())
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	artwork := filepath.Join(engine.Config().ArtworkDir, "Band_First.png")
	require.NoError(t, os.WriteFile(artwork, []byte("png"), 0o644))

	first, err := engine.store.AddSong(ctx, catalog.NewSong{Title: "One", SourceURI: "/Music/1.mp3", ArtworkPath: artwork})
	require.NoError(t, err)
	second, err := engine.store.AddSong(ctx, catalog.NewSong{Title: "Two", SourceURI: "/Music/2.mp3", ArtworkPath: artwork})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteSong(ctx, first.ID))
	assert.FileExists(t, artwork)

	require.NoError(t, engine.DeleteSong(ctx, second.ID))
	assert.NoFileExists(t, artwork)

	require.ErrorIs(t, engine.DeleteSong(ctx, second.ID), catalog.ErrSongNotFound)
}

func TestSetThemeDerivesAccentPalette(t *testing.T) {
	t.Parallel()

	engine := newEngineForTest(t, storagetest.NewMemoryProvider())
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	artwork := filepath.Join(engine.Config().ArtworkDir, "cover.png")
	writeTestCover(t, artwork)

	song, err := engine.store.AddSong(ctx, catalog.NewSong{Title: "Cover", SourceURI: "/Music/cover.mp3", ArtworkPath: artwork})
	require.NoError(t, err)

	state, err := engine.SetTheme(ctx, catalog.ThemeModeDark, song.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.ThemeModeDark, state.Mode)
	assert.Equal(t, song.ID, state.AccentSongID)
	assert.NotEmpty(t, state.Palette)
	assert.Equal(t, 1, engine.themeCache.size())

	_, err = engine.SetTheme(ctx, catalog.ThemeModeDark, song.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.themeCache.size())

	cleared, err := engine.SetTheme(ctx, "light", "")
	require.NoError(t, err)
	assert.Equal(t, catalog.ThemeModeLight, cleared.Mode)
	assert.Empty(t, cleared.AccentSongID)

	_, err = engine.SetTheme(ctx, "dark", "missing")
	require.ErrorIs(t, err, catalog.ErrSongNotFound)
}

func TestPaletteCacheEvictsOldest(t *testing.T) {
	t.Parallel()

	cache := newPaletteCache(2)
	for _, key := range []string{"a", "b", "c"} {
		cache.store(key, 1, palette.Palette{Dominant: "#102030"})
	}
	assert.Equal(t, 2, cache.size())

	hits := 0
	for _, key := range []string{"a", "b", "c"} {
		if _, ok := cache.load(key, 1); ok {
			hits++
			_, stale := cache.load(key, 2)
			assert.False(t, stale, "a changed modification time must miss")
		}
	}
	assert.Equal(t, 2, hits)
}

func writeTestCover(t *testing.T, path string) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			fill := color.NRGBA{R: 220, G: 30, B: 40, A: 255}
			if y >= 32 {
				fill = color.NRGBA{R: 20, G: 30, B: 90, A: 255}
			}
			img.SetNRGBA(x, y, fill)
		}
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, png.Encode(file, img))
}
