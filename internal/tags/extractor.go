// Package tags turns an audio file handle into a best-effort metadata
// record. Extraction never fails: any problem degrades to default values
// and is reported through Metadata.Outcome.
package tags

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"

	"cadence/internal/catalog"
	"cadence/internal/coverart"
	"cadence/internal/palette"
	"cadence/internal/storage"
)

const DefaultMaxFileBytes int64 = 50 << 20

type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeTooLarge Outcome = "too_large"
)

type Metadata struct {
	Title       string
	Artist      string
	Album       string
	DurationMS  int64
	MIMEType    string
	ArtworkPath string
	Palette     []string
	Outcome     Outcome
	Reason      string
}

type Options struct {
	Provider     storage.Provider
	MaxFileBytes int64
	// Artwork and Palette are optional; nil skips that stage.
	Artwork *coverart.Writer
	Palette *palette.Extractor
	TempDir string
	Logger  *slog.Logger
}

type Extractor struct {
	provider     storage.Provider
	maxFileBytes int64
	artwork      *coverart.Writer
	palette      *palette.Extractor
	tempDir      string
	logger       *slog.Logger
}

func NewExtractor(options Options) *Extractor {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxFileBytes := options.MaxFileBytes
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}

	return &Extractor{
		provider:     options.Provider,
		maxFileBytes: maxFileBytes,
		artwork:      options.Artwork,
		palette:      options.Palette,
		tempDir:      options.TempDir,
		logger:       logger,
	}
}

type parsedTags struct {
	title   string
	artist  string
	album   string
	picture []byte
	mime    string
}

func (p parsedTags) empty() bool {
	return p.title == "" && p.artist == "" && p.album == "" && len(p.picture) == 0
}

// Extract reads handle and returns its metadata. Title falls back to
// fallbackTitle and then to the file name without extension.
func (e *Extractor) Extract(ctx context.Context, handle storage.FileHandle, fallbackTitle string) (result Metadata) {
	result = defaultMetadata(handle, fallbackTitle)

	defer func() {
		if recovered := recover(); recovered != nil {
			result = defaultMetadata(handle, fallbackTitle)
			result.Outcome = OutcomeDegraded
			result.Reason = fmt.Sprintf("extractor panic: %v", recovered)
			e.logger.Warn("metadata extraction panicked", "uri", handle.URI, "panic", recovered)
		}
	}()

	if handle.Size > e.maxFileBytes {
		result.Outcome = OutcomeTooLarge
		result.Reason = fmt.Sprintf("file is %d bytes, limit is %d", handle.Size, e.maxFileBytes)
		return result
	}

	data, localPath, cleanup, err := e.load(ctx, handle)
	defer cleanup()
	if err != nil {
		if errors.Is(err, errTooLarge) {
			result.Outcome = OutcomeTooLarge
			result.Reason = err.Error()
			return result
		}
		return degrade(result, fmt.Sprintf("read file: %v", err))
	}

	if len(data) == 0 {
		return degrade(result, "file is empty")
	}

	parsed, tagErr := e.readTags(data, localPath)
	tagged := tagErr == nil && !parsed.empty()
	duration, durationErr := e.readDuration(result.MIMEType, data, localPath, tagged)

	if parsed.title != "" {
		result.Title = parsed.title
	}
	if parsed.artist != "" {
		result.Artist = parsed.artist
	}
	if parsed.album != "" {
		result.Album = parsed.album
	}
	if durationErr == nil {
		result.DurationMS = duration.Milliseconds()
	}

	if len(parsed.picture) > 0 {
		e.applyArtwork(&result, parsed)
	}

	if !tagged && durationErr != nil {
		if tagErr == nil {
			tagErr = errors.New("tags carry no fields")
		}
		return degrade(result, fmt.Sprintf("no readable tags (%v) or stream (%v)", tagErr, durationErr))
	}

	return result
}

func defaultMetadata(handle storage.FileHandle, fallbackTitle string) Metadata {
	name := handle.Name
	if name == "" {
		name = storage.DisplayName(handle.URI)
	}

	title := strings.TrimSpace(fallbackTitle)
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if title == "" {
		title = name
	}

	return Metadata{
		Title:    title,
		Artist:   catalog.UnknownArtist,
		Album:    catalog.UnknownAlbum,
		MIMEType: MIMEType(name),
		Outcome:  OutcomeOK,
	}
}

func degrade(result Metadata, reason string) Metadata {
	result.Outcome = OutcomeDegraded
	result.Reason = reason
	return result
}

var errTooLarge = errors.New("file exceeds size limit")

// load returns the file bytes and, when one exists, a local path for
// path-based readers. Copy-semantics handles are materialised first.
func (e *Extractor) load(ctx context.Context, handle storage.FileHandle) ([]byte, string, func(), error) {
	noop := func() {}
	if e.provider == nil {
		return nil, "", noop, errors.New("no storage provider configured")
	}

	if handle.RequiresCopy {
		tempDir, err := os.MkdirTemp(e.tempDir, "extract-*")
		if err != nil {
			return nil, "", noop, fmt.Errorf("create temp dir: %w", err)
		}
		cleanup := func() { _ = os.RemoveAll(tempDir) }

		localPath := filepath.Join(tempDir, coverart.SanitizeName(handle.Name, 0))
		if err := e.provider.CopyToLocal(ctx, handle, localPath); err != nil {
			return nil, "", cleanup, fmt.Errorf("copy to local: %w", err)
		}

		file, err := os.Open(localPath)
		data, err := readBounded(file, err, e.maxFileBytes)
		return data, localPath, cleanup, err
	}

	localPath := ""
	if pather, ok := e.provider.(storage.LocalPather); ok {
		if path, ok := pather.LocalPath(handle.URI); ok {
			localPath = path
		}
	}

	reader, err := e.provider.Open(ctx, handle.URI)
	data, err := readBounded(reader, err, e.maxFileBytes)
	return data, localPath, noop, err
}

func readBounded(reader io.ReadCloser, openErr error, limit int64) ([]byte, error) {
	if openErr != nil {
		return nil, openErr
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", errTooLarge, limit)
	}

	return data, nil
}

func (e *Extractor) readTags(data []byte, localPath string) (parsedTags, error) {
	parsed := parsedTags{}

	metadata, err := tag.ReadFrom(bytes.NewReader(data))
	if err == nil {
		parsed.title = strings.TrimSpace(metadata.Title())
		parsed.artist = strings.TrimSpace(metadata.Artist())
		if parsed.artist == "" {
			parsed.artist = strings.TrimSpace(metadata.AlbumArtist())
		}
		parsed.album = strings.TrimSpace(metadata.Album())
		if picture := metadata.Picture(); picture != nil && len(picture.Data) > 0 {
			parsed.picture = picture.Data
			parsed.mime = picture.MIMEType
		}
		if !parsed.empty() {
			return parsed, nil
		}
	}

	if localPath == "" {
		if err == nil {
			return parsed, nil
		}
		return parsed, fmt.Errorf("parse tags: %w", err)
	}

	values, taglibErr := taglib.ReadTags(localPath)
	if taglibErr != nil {
		if err == nil {
			return parsed, nil
		}
		return parsed, fmt.Errorf("parse tags: %w", errors.Join(err, taglibErr))
	}

	parsed.title = firstTagValue(values, taglib.Title)
	parsed.artist = firstTagValue(values, taglib.Artist, taglib.AlbumArtist)
	parsed.album = firstTagValue(values, taglib.Album)
	if len(parsed.picture) == 0 {
		if image, imageErr := taglib.ReadImage(localPath); imageErr == nil && len(image) > 0 {
			parsed.picture = image
		}
	}

	if parsed.empty() && err != nil {
		return parsed, fmt.Errorf("parse tags: %w", err)
	}

	return parsed, nil
}

// readDuration prefers taglib's length for local files. Without readable
// tags that length is only used once the buffer probe has found a stream,
// or when no probe exists for the container.
func (e *Extractor) readDuration(mimeType string, data []byte, localPath string, tagged bool) (time.Duration, error) {
	if localPath == "" {
		return probeDuration(mimeType, data)
	}

	var probed time.Duration
	if !tagged {
		var err error
		if probed, err = probeDuration(mimeType, data); err != nil && !errors.Is(err, errNoDurationProbe) {
			return 0, err
		}
	}

	properties, err := taglib.ReadProperties(localPath)
	if err == nil && properties.Length > 0 {
		return properties.Length, nil
	}
	if !tagged {
		if probed == 0 {
			return 0, errNoDurationProbe
		}
		return probed, nil
	}

	return probeDuration(mimeType, data)
}

func (e *Extractor) applyArtwork(result *Metadata, parsed parsedTags) {
	if e.artwork == nil {
		return
	}

	artworkPath, err := e.artwork.Save(result.Artist, result.Title, parsed.picture, parsed.mime)
	if err != nil {
		e.logger.Warn("artwork save failed", "title", result.Title, "error", err)
		return
	}
	result.ArtworkPath = artworkPath

	if e.palette == nil {
		return
	}

	derived, err := e.palette.ExtractFromBytes(parsed.picture)
	if err != nil {
		e.logger.Debug("palette extraction failed", "artwork", artworkPath, "error", err)
		return
	}
	if colors := derived.Colors(); len(colors) > 0 {
		result.Palette = colors
	}
}

func firstTagValue(values map[string][]string, keys ...string) string {
	for _, key := range keys {
		for _, value := range values[key] {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}

	return ""
}
