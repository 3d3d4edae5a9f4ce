package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"cadence/internal/storage"
)

const DefaultWatchDebounce = 2 * time.Second

type WatcherOptions struct {
	Service  *Service
	Folders  FolderSource
	Debounce time.Duration
	// AfterScan runs after every watcher-triggered scan. Deleted files are
	// not noticed by an incremental scan, so hosts pass the audio sweep here.
	AfterScan func(ctx context.Context) error
	Logger    *slog.Logger
}

// Watcher turns filesystem events under enabled local folders into
// debounced incremental scans. Scoped-storage folders are not watched.
type Watcher struct {
	service   *Service
	folders   FolderSource
	delay     time.Duration
	afterScan func(ctx context.Context) error
	logger    *slog.Logger
}

func NewWatcher(options WatcherOptions) *Watcher {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	delay := options.Debounce
	if delay <= 0 {
		delay = DefaultWatchDebounce
	}

	return &Watcher{
		service:   options.Service,
		folders:   options.Folders,
		delay:     delay,
		afterScan: options.AfterScan,
		logger:    logger,
	}
}

// Run watches until ctx ends. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fsWatcher.Close()

	folders, err := w.folders.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled folders: %w", err)
	}

	watched := 0
	for _, folder := range folders {
		root, ok := storage.LocalPathFromURI(folder.URI)
		if !ok {
			w.logger.Debug("not watching scoped folder", "folder", folder.URI)
			continue
		}
		watched += w.addTree(fsWatcher, root)
	}
	w.logger.Info("watching music folders", "folders", len(folders), "directories", watched)

	trigger := make(chan struct{}, 1)
	debounced := debounce.New(w.delay)
	schedule := func() {
		debounced(func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(fsWatcher, event.Name)
				}
			}
			w.logger.Debug("library change", "path", event.Name, "op", event.Op.String())
			schedule()
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fs watcher error", "error", err)
		case <-trigger:
			w.sync(ctx)
		}
	}
}

func (w *Watcher) sync(ctx context.Context) {
	summary, err := w.service.Scan(ctx, nil)
	switch {
	case errors.Is(err, ErrScanInProgress):
		w.logger.Debug("scan already running, change will be picked up by it")
		return
	case err != nil:
		w.logger.Warn("watch scan failed", "error", err)
		return
	}

	w.logger.Debug("watch scan done", "added", summary.Added)

	if w.afterScan != nil {
		if err := w.afterScan(ctx); err != nil {
			w.logger.Warn("post-scan sweep failed", "error", err)
		}
	}
}

// addTree watches root and every directory below it and returns how many
// directories were added.
func (w *Watcher) addTree(fsWatcher *fsnotify.Watcher, root string) int {
	added := 0
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Debug("cannot watch path", "path", path, "error", walkErr)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if err := fsWatcher.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", "path", path, "error", err)
			return nil
		}
		added++
		return nil
	})
	if err != nil {
		w.logger.Warn("walk watch root", "root", root, "error", err)
	}
	return added
}
