package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cadence/internal/catalog"
	"cadence/internal/library"
	"cadence/internal/storage"
	"cadence/internal/tags"
	"cadence/internal/tags/tagstest"
)

func TestWatcherScansAfterFileAppears(t *testing.T) {
	t.Parallel()

	musicDir := t.TempDir()
	store := catalog.New(catalog.Options{Path: filepath.Join(t.TempDir(), "library.db")})
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() {
		_ = store.Close()
	})

	database, err := store.DB()
	require.NoError(t, err)
	folders := library.NewFolderRepository(database)
	_, err = folders.Add(context.Background(), musicDir, "")
	require.NoError(t, err)

	provider := storage.NewLocalProvider()
	service := NewService(Options{
		Provider:   provider,
		Catalog:    store,
		Folders:    folders,
		Extractor:  tags.NewExtractor(tags.Options{Provider: provider, TempDir: t.TempDir()}),
		Extensions: storage.NewExtensionTable(storage.DefaultAudioExtensions, storage.DefaultIgnoredExtensions),
	})

	var sweeps atomic.Int32
	watcher := NewWatcher(WatcherOptions{
		Service:  service,
		Folders:  folders,
		Debounce: 50 * time.Millisecond,
		AfterScan: func(context.Context) error {
			sweeps.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watcher.Run(ctx)
	}()

	target := filepath.Join(musicDir, "new.mp3")
	payload := tagstest.ID3v23("Fresh", "Artist", "Album")
	require.Eventually(t, func() bool {
		// Rewriting keeps generating events until the watch is in place.
		if err := os.WriteFile(target, payload, 0o644); err != nil {
			return false
		}
		count, err := store.CountSongs(context.Background())
		return err == nil && count == 1 && sweeps.Load() > 0
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
