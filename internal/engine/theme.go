package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cadence/internal/catalog"
	"cadence/internal/palette"
)

const maxThemeCacheEntries = 96

func (e *Engine) GetTheme(ctx context.Context) (catalog.ThemeState, error) {
	if _, err := e.ready(); err != nil {
		return catalog.ThemeState{}, err
	}
	return e.store.GetThemeState(ctx)
}

// SetTheme stores the theme mode and accent song. The accent palette is the
// song's stored palette, or one derived from its artwork when the song has
// none. An empty accentSongID clears the accent.
func (e *Engine) SetTheme(ctx context.Context, mode string, accentSongID string) (catalog.ThemeState, error) {
	parts, err := e.ready()
	if err != nil {
		return catalog.ThemeState{}, err
	}

	state := catalog.ThemeState{Mode: mode}
	accentSongID = strings.TrimSpace(accentSongID)
	if accentSongID == "" {
		return e.store.SaveThemeState(ctx, state)
	}

	song, err := e.store.GetSong(ctx, accentSongID)
	if err != nil {
		return catalog.ThemeState{}, err
	}
	state.AccentSongID = song.ID
	state.Palette = song.Palette

	if len(state.Palette) == 0 && song.ArtworkPath != "" {
		derived, err := e.paletteFor(parts.palettes, song.ArtworkPath)
		if err != nil {
			e.logger.Debug("no accent palette", "song", song.ID, "error", err)
		} else {
			state.Palette = derived.Colors()
		}
	}

	return e.store.SaveThemeState(ctx, state)
}

func (e *Engine) paletteFor(extractor *palette.Extractor, artworkPath string) (palette.Palette, error) {
	resolved := artworkPath
	if !filepath.IsAbs(resolved) && e.cfg.ArtworkDir != "" {
		resolved = filepath.Join(e.cfg.ArtworkDir, resolved)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return palette.Palette{}, fmt.Errorf("artwork not found: %w", err)
	}
	modified := info.ModTime().UnixNano()

	if cached, ok := e.themeCache.load(resolved, modified); ok {
		return cached, nil
	}

	derived, err := extractor.ExtractFromPath(resolved)
	if err != nil {
		return palette.Palette{}, fmt.Errorf("derive accent palette: %w", err)
	}

	e.themeCache.store(resolved, modified, derived)
	return derived, nil
}

type paletteCacheEntry struct {
	palette           palette.Palette
	sourceModUnixNano int64
	cachedAt          time.Time
}

// paletteCache keeps derived palettes keyed by artwork path. An entry is
// stale once the file's modification time changes.
type paletteCache struct {
	mu         sync.RWMutex
	entries    map[string]paletteCacheEntry
	maxEntries int
}

func newPaletteCache(maxEntries int) *paletteCache {
	return &paletteCache{
		entries:    make(map[string]paletteCacheEntry),
		maxEntries: maxEntries,
	}
}

func (c *paletteCache) load(path string, sourceModUnixNano int64) (palette.Palette, bool) {
	c.mu.RLock()
	entry, ok := c.entries[path]
	c.mu.RUnlock()
	if !ok || entry.sourceModUnixNano != sourceModUnixNano {
		return palette.Palette{}, false
	}

	return entry.palette, true
}

func (c *paletteCache) store(path string, sourceModUnixNano int64, derived palette.Palette) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = paletteCacheEntry{
		palette:           derived,
		sourceModUnixNano: sourceModUnixNano,
		cachedAt:          time.Now(),
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	oldestKey := ""
	oldestAt := time.Now()
	for key, entry := range c.entries {
		if oldestKey == "" || entry.cachedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.cachedAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *paletteCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
