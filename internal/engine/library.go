package engine

import (
	"context"
	"errors"
	"fmt"

	"cadence/internal/cleanup"
	"cadence/internal/library"
	"cadence/internal/scanner"
)

func (e *Engine) Scan(ctx context.Context, progress scanner.ProgressFunc) (scanner.Summary, error) {
	parts, err := e.ready()
	if err != nil {
		return scanner.Summary{}, err
	}
	return parts.scanner.Scan(ctx, progress)
}

func (e *Engine) Refresh(ctx context.Context, progress scanner.ProgressFunc) (scanner.RefreshSummary, error) {
	parts, err := e.ready()
	if err != nil {
		return scanner.RefreshSummary{}, err
	}
	return parts.scanner.Refresh(ctx, progress)
}

// Startup is the lightweight scan a host runs at launch. Folders that can
// no longer be opened are dropped together with their songs.
func (e *Engine) Startup(ctx context.Context, progress scanner.ProgressFunc) (scanner.Summary, error) {
	parts, err := e.ready()
	if err != nil {
		return scanner.Summary{}, err
	}
	return parts.scanner.Startup(ctx, progress)
}

func (e *Engine) ScanStatus() (scanner.Status, error) {
	parts, err := e.ready()
	if err != nil {
		return scanner.Status{}, err
	}
	return parts.scanner.GetStatus(), nil
}

// AddFolder asks the storage provider for access to uri and registers the
// granted folder. Adding a folder that is already registered returns it.
func (e *Engine) AddFolder(ctx context.Context, uri string) (library.Folder, error) {
	parts, err := e.ready()
	if err != nil {
		return library.Folder{}, err
	}

	handle, err := e.provider.RequestAccess(ctx, uri)
	if err != nil {
		return library.Folder{}, err
	}

	folder, err := parts.folders.Add(ctx, handle.URI, handle.Name)
	if err != nil {
		return library.Folder{}, err
	}

	e.logger.Info("music folder added", "folder", folder.URI, "id", folder.ID)
	return folder, nil
}

func (e *Engine) ListFolders(ctx context.Context) ([]library.Folder, error) {
	parts, err := e.ready()
	if err != nil {
		return nil, err
	}
	return parts.folders.List(ctx)
}

// RemoveFolder drops the registration only. Songs imported from the folder
// stay until a refresh or cleanup finds their files gone.
func (e *Engine) RemoveFolder(ctx context.Context, id string) error {
	parts, err := e.ready()
	if err != nil {
		return err
	}

	if err := parts.folders.Delete(ctx, id); err != nil {
		if errors.Is(err, library.ErrFolderNotFound) {
			return fmt.Errorf("music folder %s: %w", id, err)
		}
		return err
	}
	return nil
}

func (e *Engine) SetFolderEnabled(ctx context.Context, id string, enabled bool) error {
	parts, err := e.ready()
	if err != nil {
		return err
	}

	if err := parts.folders.SetEnabled(ctx, id, enabled); err != nil {
		if errors.Is(err, library.ErrFolderNotFound) {
			return fmt.Errorf("music folder %s: %w", id, err)
		}
		return err
	}
	return nil
}

// RunCleanup runs the reconciliation sweep once.
func (e *Engine) RunCleanup(ctx context.Context) (cleanup.Report, error) {
	parts, err := e.ready()
	if err != nil {
		return cleanup.Report{}, err
	}
	return parts.sweeper.RunCleanup(ctx)
}

// RunCleanupLoop sweeps now and then on the configured interval until ctx
// ends.
func (e *Engine) RunCleanupLoop(ctx context.Context) error {
	parts, err := e.ready()
	if err != nil {
		return err
	}
	return parts.sweeper.Run(ctx, e.cfg.Cleanup.Interval)
}

// Watch rescans enabled local folders when they change. Each scan is
// followed by the local audio sweep so deletions are noticed too.
func (e *Engine) Watch(ctx context.Context) error {
	parts, err := e.ready()
	if err != nil {
		return err
	}

	watcher := scanner.NewWatcher(scanner.WatcherOptions{
		Service:  parts.scanner,
		Folders:  parts.folders,
		Debounce: e.cfg.Watch.Debounce,
		AfterScan: func(ctx context.Context) error {
			_, err := parts.sweeper.AudioSweep(ctx)
			return err
		},
		Logger: e.logger.With("component", "watcher"),
	})
	return watcher.Run(ctx)
}
