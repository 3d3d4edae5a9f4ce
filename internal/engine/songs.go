package engine

import (
	"context"

	"github.com/samber/lo"

	"cadence/internal/catalog"
	"cadence/internal/stats"
)

func (e *Engine) GetAllSongs(ctx context.Context) ([]catalog.Song, error) {
	if _, err := e.ready(); err != nil {
		return nil, err
	}
	return e.store.ListSongs(ctx)
}

func (e *Engine) GetSongByID(ctx context.Context, id string) (catalog.Song, error) {
	if _, err := e.ready(); err != nil {
		return catalog.Song{}, err
	}
	return e.store.GetSong(ctx, id)
}

func (e *Engine) ToggleLike(ctx context.Context, id string) (bool, error) {
	if _, err := e.ready(); err != nil {
		return false, err
	}
	return e.store.ToggleLike(ctx, id)
}

// IncrementPlayCount is a no-op for unknown ids.
func (e *Engine) IncrementPlayCount(ctx context.Context, id string) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	return e.store.IncrementPlayCount(ctx, id)
}

func (e *Engine) ResetPlayCount(ctx context.Context, id string) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	return e.store.ResetPlayCount(ctx, id)
}

// DeleteSong removes the song and its playlist memberships. Its cached
// artwork is deleted as well unless another song still uses the same file.
func (e *Engine) DeleteSong(ctx context.Context, id string) error {
	parts, err := e.ready()
	if err != nil {
		return err
	}

	song, err := e.store.GetSong(ctx, id)
	if err != nil {
		return err
	}

	if err := e.store.DeleteSong(ctx, id); err != nil {
		return err
	}

	if song.ArtworkPath == "" {
		return nil
	}

	songs, err := e.store.ListSongs(ctx)
	if err != nil {
		e.logger.Warn("cannot check shared artwork", "song", id, "error", err)
		return nil
	}
	shared := lo.ContainsBy(songs, func(other catalog.Song) bool {
		return other.ArtworkPath == song.ArtworkPath
	})
	if shared {
		return nil
	}

	if err := parts.artwork.Remove(song.ArtworkPath); err != nil {
		e.logger.Warn("cannot remove artwork", "song", id, "artwork", song.ArtworkPath, "error", err)
	}
	return nil
}

func (e *Engine) ListArtists(ctx context.Context) ([]catalog.Artist, error) {
	if _, err := e.ready(); err != nil {
		return nil, err
	}
	return e.store.ListArtists(ctx)
}

// UpsertArtist stores details fetched for an artist. Empty fields keep what
// is already stored.
func (e *Engine) UpsertArtist(ctx context.Context, details catalog.ArtistDetails) (catalog.Artist, error) {
	if _, err := e.ready(); err != nil {
		return catalog.Artist{}, err
	}
	return e.store.UpsertArtist(ctx, details)
}

// Overview summarises the library and its most played songs and artists.
func (e *Engine) Overview(ctx context.Context, limit int) (stats.Overview, error) {
	parts, err := e.ready()
	if err != nil {
		return stats.Overview{}, err
	}
	return parts.stats.GetOverview(ctx, limit)
}
