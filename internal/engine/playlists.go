package engine

import (
	"context"

	"cadence/internal/catalog"
)

func (e *Engine) CreatePlaylist(ctx context.Context, name string, description string) (catalog.Playlist, error) {
	if _, err := e.ready(); err != nil {
		return catalog.Playlist{}, err
	}
	return e.store.CreatePlaylist(ctx, name, description)
}

func (e *Engine) RenamePlaylist(ctx context.Context, id string, name string) (catalog.Playlist, error) {
	if _, err := e.ready(); err != nil {
		return catalog.Playlist{}, err
	}
	return e.store.RenamePlaylist(ctx, id, name)
}

func (e *Engine) DeletePlaylist(ctx context.Context, id string) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	return e.store.DeletePlaylist(ctx, id)
}

func (e *Engine) GetPlaylist(ctx context.Context, id string) (catalog.Playlist, error) {
	if _, err := e.ready(); err != nil {
		return catalog.Playlist{}, err
	}
	return e.store.GetPlaylist(ctx, id)
}

func (e *Engine) ListPlaylists(ctx context.Context) ([]catalog.Playlist, error) {
	if _, err := e.ready(); err != nil {
		return nil, err
	}
	return e.store.ListPlaylists(ctx)
}

func (e *Engine) AddSongToPlaylist(ctx context.Context, playlistID string, songID string) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	return e.store.AddSongToPlaylist(ctx, playlistID, songID)
}

func (e *Engine) RemoveSongFromPlaylist(ctx context.Context, playlistID string, songID string) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	return e.store.RemoveSongFromPlaylist(ctx, playlistID, songID)
}

func (e *Engine) MoveSongInPlaylist(ctx context.Context, playlistID string, songID string, position int) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	return e.store.MoveSongInPlaylist(ctx, playlistID, songID, position)
}

func (e *Engine) GetPlaylistSongs(ctx context.Context, playlistID string) ([]catalog.PlaylistSong, error) {
	if _, err := e.ready(); err != nil {
		return nil, err
	}
	return e.store.GetPlaylistSongs(ctx, playlistID)
}
