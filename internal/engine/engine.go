// Package engine wires the catalog, folder registry, scanner and cleanup
// sweeper into the single surface a host application talks to.
//
// Initialize must succeed before any other call; until then every operation
// returns ErrNotInitialized.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"cadence/internal/catalog"
	"cadence/internal/cleanup"
	"cadence/internal/config"
	"cadence/internal/coverart"
	"cadence/internal/library"
	"cadence/internal/palette"
	"cadence/internal/scanner"
	"cadence/internal/stats"
	"cadence/internal/storage"
	"cadence/internal/tags"
)

var ErrNotInitialized = errors.New("engine is not initialized")

type Options struct {
	Config config.Config
	// Provider defaults to the local filesystem.
	Provider storage.Provider
	Logger   *slog.Logger
}

type Engine struct {
	cfg      config.Config
	provider storage.Provider
	logger   *slog.Logger
	store    *catalog.Store

	mu      sync.Mutex
	parts   *components
	pending *initRound
	emitter scanner.Emitter

	themeCache *paletteCache
}

type components struct {
	folders  *library.FolderRepository
	scanner  *scanner.Service
	sweeper  *cleanup.Sweeper
	artwork  *coverart.Writer
	palettes *palette.Extractor
	stats    *stats.Service
}

type initRound struct {
	done chan struct{}
	err  error
}

func New(options Options) *Engine {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider := options.Provider
	if provider == nil {
		provider = storage.NewLocalProvider()
	}

	cfg := options.Config
	return &Engine{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		store: catalog.New(catalog.Options{
			Path:        cfg.DatabasePath,
			BusyTimeout: cfg.Store.BusyTimeout,
			Retry: catalog.RetryPolicy{
				BaseDelay: cfg.Store.Retry.BaseDelay,
				MaxDelay:  cfg.Store.Retry.MaxDelay,
				Attempts:  cfg.Store.Retry.Attempts,
			},
			Logger: logger.With("component", "catalog"),
		}),
		themeCache: newPaletteCache(maxThemeCacheEntries),
	}
}

// Initialize opens the store and builds the services on top of it, then
// checks scoped-storage songs once. Concurrent callers share one attempt.
// A failure is returned to every waiter and the next call tries again.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.parts != nil {
		e.mu.Unlock()
		return nil
	}
	if round := e.pending; round != nil {
		e.mu.Unlock()
		select {
		case <-round.done:
			return round.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	round := &initRound{done: make(chan struct{})}
	e.pending = round
	e.mu.Unlock()

	parts, err := e.build(ctx)

	e.mu.Lock()
	if err == nil {
		e.parts = parts
		if e.emitter != nil {
			parts.scanner.SetEmitter(e.emitter)
		}
	}
	round.err = err
	e.pending = nil
	e.mu.Unlock()
	close(round.done)

	if err != nil {
		return err
	}

	report, sweepErr := parts.sweeper.ContentSweep(ctx)
	if sweepErr != nil {
		e.logger.Warn("content sweep failed", "error", sweepErr)
	} else if report.Checked > 0 {
		e.logger.Info("content sweep finished", "checked", report.Checked, "removed", report.Removed)
	}

	return nil
}

func (e *Engine) build(ctx context.Context) (*components, error) {
	if err := e.store.Init(ctx); err != nil {
		return nil, err
	}

	database, err := e.store.DB()
	if err != nil {
		return nil, err
	}

	if e.cfg.ArtworkDir != "" {
		if err := os.MkdirAll(e.cfg.ArtworkDir, 0o755); err != nil {
			return nil, fmt.Errorf("create artwork dir: %w", err)
		}
	}

	var thumbnails []coverart.ThumbnailSpec
	if e.cfg.ThumbnailsEnabled() {
		thumbnails = coverart.DefaultThumbnailSpecs(e.cfg.Artwork.ThumbnailSize)
	}

	artwork := coverart.NewWriter(coverart.Options{
		Dir:           e.cfg.ArtworkDir,
		MaxNameLength: e.cfg.Artwork.MaxNameLength,
		Thumbnails:    thumbnails,
		Logger:        e.logger.With("component", "coverart"),
	})
	palettes := palette.NewExtractor(palette.DefaultOptions())
	folders := library.NewFolderRepository(database)

	extractorOptions := tags.Options{
		Provider:     e.provider,
		MaxFileBytes: e.cfg.Scan.MaxFileBytes,
		Palette:      palettes,
		Logger:       e.logger.With("component", "tags"),
	}
	if e.cfg.ArtworkDir != "" {
		extractorOptions.Artwork = artwork
	}

	scanService := scanner.NewService(scanner.Options{
		Provider:   e.provider,
		Catalog:    e.store,
		Folders:    folders,
		Extractor:  tags.NewExtractor(extractorOptions),
		Extensions: storage.NewExtensionTable(e.cfg.Scan.AudioExtensions, e.cfg.Scan.IgnoredExtensions),
		BatchSize:  e.cfg.Scan.BatchSize,
		Logger:     e.logger.With("component", "scanner"),
	})

	sweeper := cleanup.NewSweeper(cleanup.Options{
		Catalog:    e.store,
		Provider:   e.provider,
		ArtworkDir: e.cfg.ArtworkDir,
		Logger:     e.logger.With("component", "cleanup"),
	})

	return &components{
		folders:  folders,
		scanner:  scanService,
		sweeper:  sweeper,
		artwork:  artwork,
		palettes: palettes,
		stats:    stats.NewService(database),
	}, nil
}

func (e *Engine) ready() (*components, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parts == nil {
		return nil, ErrNotInitialized
	}
	return e.parts, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.parts = nil
	e.mu.Unlock()
	return e.store.Close()
}

// Config returns the effective configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// SetEmitter forwards scanner events to emitter. It may be called before
// Initialize.
func (e *Engine) SetEmitter(emitter scanner.Emitter) {
	e.mu.Lock()
	e.emitter = emitter
	parts := e.parts
	e.mu.Unlock()

	if parts != nil {
		parts.scanner.SetEmitter(emitter)
	}
}
