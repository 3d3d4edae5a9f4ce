// Package cleanup reconciles the catalog with what is actually on disk:
// dangling artwork references, songs whose local file vanished, thumbnail
// leftovers and duplicate artist rows. Every pass is idempotent.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"cadence/internal/catalog"
	"cadence/internal/coverart"
	"cadence/internal/storage"
)

type Catalog interface {
	ListSongs(ctx context.Context) ([]catalog.Song, error)
	UpdateSong(ctx context.Context, id string, update catalog.SongUpdate) (catalog.Song, error)
	DeleteSongs(ctx context.Context, ids []string) (int, error)
	ListArtists(ctx context.Context) ([]catalog.Artist, error)
	SetArtistImage(ctx context.Context, id string, imageURL string) error
	MergeDuplicateArtists(ctx context.Context) (catalog.MergeResult, error)
}

type Options struct {
	Catalog    Catalog
	Provider   storage.Provider
	ArtworkDir string
	Logger     *slog.Logger
}

type ImageReport struct {
	SongsChecked    int `json:"songsChecked"`
	SongsCleared    int `json:"songsCleared"`
	ArtistsChecked  int `json:"artistsChecked"`
	ArtistsFallback int `json:"artistsFallback"`
	VariantsRemoved int `json:"variantsRemoved"`
}

type AudioReport struct {
	Checked int `json:"checked"`
	Removed int `json:"removed"`
	// Unverified counts songs whose existence check itself failed; they
	// are kept.
	Unverified int `json:"unverified"`
}

type Report struct {
	Images   ImageReport         `json:"images"`
	Audio    AudioReport         `json:"audio"`
	Artists  catalog.MergeResult `json:"artists"`
	Duration time.Duration       `json:"duration"`
}

type Sweeper struct {
	catalog    Catalog
	provider   storage.Provider
	artworkDir string
	logger     *slog.Logger
}

func NewSweeper(options Options) *Sweeper {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		catalog:    options.Catalog,
		provider:   options.Provider,
		artworkDir: strings.TrimSpace(options.ArtworkDir),
		logger:     logger,
	}
}

// RunCleanup runs the image sweep, the local audio sweep and the artist
// merge. A failing pass does not stop the others; their errors are joined.
func (s *Sweeper) RunCleanup(ctx context.Context) (Report, error) {
	started := time.Now()
	var report Report
	var errs []error

	images, err := s.ImageSweep(ctx)
	report.Images = images
	if err != nil {
		errs = append(errs, err)
	}

	audio, err := s.AudioSweep(ctx)
	report.Audio = audio
	if err != nil {
		errs = append(errs, err)
	}

	artists, err := s.catalog.MergeDuplicateArtists(ctx)
	report.Artists = artists
	if err != nil {
		errs = append(errs, fmt.Errorf("merge artists: %w", err))
	}

	report.Duration = time.Since(started)
	s.logger.Info(
		"cleanup finished",
		"artwork_cleared", report.Images.SongsCleared,
		"artist_fallbacks", report.Images.ArtistsFallback,
		"variants_removed", report.Images.VariantsRemoved,
		"songs_removed", report.Audio.Removed,
		"artists_merged", report.Artists.Removed,
		"duration", report.Duration,
	)

	return report, errors.Join(errs...)
}

// Run sweeps once immediately and then every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("cleanup interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunCleanup(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("periodic cleanup failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ImageSweep clears song artwork paths whose file is gone, points artists
// with a missing cached image at their fallback URL and deletes thumbnails
// whose original artwork no longer exists.
func (s *Sweeper) ImageSweep(ctx context.Context) (ImageReport, error) {
	var report ImageReport

	songs, err := s.catalog.ListSongs(ctx)
	if err != nil {
		return report, fmt.Errorf("image sweep: %w", err)
	}

	cleared := ""
	for _, song := range songs {
		if song.ArtworkPath == "" {
			continue
		}
		report.SongsChecked++

		if s.cachedFileExists(song.ArtworkPath) {
			continue
		}

		if _, err := s.catalog.UpdateSong(ctx, song.ID, catalog.SongUpdate{ArtworkPath: &cleared}); err != nil {
			if errors.Is(err, catalog.ErrSongNotFound) {
				continue
			}
			return report, fmt.Errorf("image sweep: clear artwork of %s: %w", song.ID, err)
		}
		report.SongsCleared++
		s.logger.Debug("cleared missing artwork", "song", song.ID, "artwork", song.ArtworkPath)
	}

	artists, err := s.catalog.ListArtists(ctx)
	if err != nil {
		return report, fmt.Errorf("image sweep: %w", err)
	}

	for _, artist := range artists {
		if !isCachedImage(artist.ImageURL) {
			continue
		}
		report.ArtistsChecked++

		if s.cachedFileExists(artist.ImageURL) {
			continue
		}

		if err := s.catalog.SetArtistImage(ctx, artist.ID, artist.FallbackURL); err != nil {
			if errors.Is(err, catalog.ErrArtistNotFound) {
				continue
			}
			return report, fmt.Errorf("image sweep: reset image of artist %s: %w", artist.ID, err)
		}
		report.ArtistsFallback++
	}

	if s.artworkDir != "" {
		orphans, err := coverart.OrphanVariants(s.artworkDir)
		if err != nil {
			return report, fmt.Errorf("image sweep: list thumbnails: %w", err)
		}
		for _, orphan := range orphans {
			if err := os.Remove(orphan); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("cannot remove orphan thumbnail", "path", orphan, "error", err)
				continue
			}
			report.VariantsRemoved++
		}
	}

	return report, nil
}

// AudioSweep deletes songs whose local file no longer exists. Scoped and
// remote URIs are left to ContentSweep.
func (s *Sweeper) AudioSweep(ctx context.Context) (AudioReport, error) {
	return s.sweepAudio(ctx, "audio sweep", storage.IsLocalURI)
}

// ContentSweep checks scoped-storage URIs. These checks are expensive, so
// it runs once when the store is initialised rather than periodically.
func (s *Sweeper) ContentSweep(ctx context.Context) (AudioReport, error) {
	return s.sweepAudio(ctx, "content sweep", storage.IsContentURI)
}

func (s *Sweeper) sweepAudio(ctx context.Context, op string, include func(uri string) bool) (AudioReport, error) {
	var report AudioReport

	songs, err := s.catalog.ListSongs(ctx)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}

	candidates := lo.Filter(songs, func(song catalog.Song, _ int) bool {
		return include(song.SourceURI)
	})

	missing := make([]string, 0)
	for _, song := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		exists, err := s.provider.Exists(ctx, song.SourceURI)
		if err != nil {
			report.Unverified++
			s.logger.Warn("cannot check song file", "uri", song.SourceURI, "error", err)
			continue
		}
		if !exists {
			missing = append(missing, song.ID)
		}
	}

	if len(missing) == 0 {
		return report, nil
	}

	removed, err := s.catalog.DeleteSongs(ctx, missing)
	if err != nil {
		return report, fmt.Errorf("%s: delete missing songs: %w", op, err)
	}
	report.Removed = removed
	s.logger.Info("removed songs with missing files", "op", op, "count", removed)

	return report, nil
}

// cachedFileExists resolves stored relative to the artwork directory and
// reports whether a regular file is there.
func (s *Sweeper) cachedFileExists(stored string) bool {
	resolved := strings.TrimSpace(stored)
	if path, ok := storage.LocalPathFromURI(resolved); ok {
		resolved = path
	}
	if !filepath.IsAbs(resolved) && s.artworkDir != "" {
		resolved = filepath.Join(s.artworkDir, resolved)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		// Only a definite absence clears a reference.
		return !errors.Is(err, fs.ErrNotExist)
	}
	return !info.IsDir()
}

func isCachedImage(imageURL string) bool {
	trimmed := strings.TrimSpace(imageURL)
	return trimmed != "" && storage.IsLocalURI(trimmed)
}
