// Package coverart persists embedded artwork to the cache directory and
// derives its thumbnails.
package coverart

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"cadence/internal/storage"
)

const DefaultMaxNameLength = 64

type Options struct {
	Dir           string
	MaxNameLength int
	Thumbnails    []ThumbnailSpec
	Logger        *slog.Logger
}

type Writer struct {
	dir           string
	maxNameLength int
	thumbnails    []ThumbnailSpec
	logger        *slog.Logger
}

func NewWriter(options Options) *Writer {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxNameLength := options.MaxNameLength
	if maxNameLength <= 0 {
		maxNameLength = DefaultMaxNameLength
	}

	return &Writer{
		dir:           options.Dir,
		maxNameLength: maxNameLength,
		thumbnails:    append([]ThumbnailSpec(nil), options.Thumbnails...),
		logger:        logger,
	}
}

func (w *Writer) Dir() string {
	return w.dir
}

// Save writes image bytes as "<artist>_<title><ext>" and renders the
// configured thumbnails next to it. Thumbnail failures are logged only.
func (w *Writer) Save(artist string, title string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("save artwork: empty image")
	}
	if strings.TrimSpace(w.dir) == "" {
		return "", fmt.Errorf("save artwork: no artwork directory configured")
	}

	name := SanitizeName(artist+"_"+title, w.maxNameLength)
	artworkPath := filepath.Join(w.dir, name+imageExtension(mimeType, data))

	if err := storage.WriteFileAtomic(artworkPath, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("save artwork: %w", err)
	}

	for _, thumb := range w.thumbnails {
		variantPath := VariantPath(artworkPath, thumb.Variant)
		if err := WriteThumbnail(data, variantPath, thumb.Size); err != nil {
			w.logger.Warn("thumbnail generation failed", "artwork", artworkPath, "variant", thumb.Variant, "error", err)
		}
	}

	return artworkPath, nil
}

// Remove deletes an artwork file and any of its thumbnails.
func (w *Writer) Remove(artworkPath string) error {
	if strings.TrimSpace(artworkPath) == "" {
		return nil
	}

	paths := []string{artworkPath}
	for _, thumb := range w.thumbnails {
		paths = append(paths, VariantPath(artworkPath, thumb.Variant))
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove artwork %s: %w", path, err)
		}
	}

	return nil
}

// SanitizeName folds accents, replaces anything outside [A-Za-z0-9._-] with
// '_' and truncates to maxLength bytes.
func SanitizeName(value string, maxLength int) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, value)
	if err != nil {
		folded = value
	}

	var builder strings.Builder
	builder.Grow(len(folded))
	lastUnderscore := false
	for _, char := range folded {
		safe := (char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '.'
		if safe {
			builder.WriteRune(char)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			builder.WriteByte('_')
			lastUnderscore = true
		}
	}

	name := strings.Trim(builder.String(), "_.")
	if name == "" {
		name = "artwork"
	}

	if maxLength > 0 && len(name) > maxLength {
		name = strings.TrimRight(name[:maxLength], "_.")
	}

	return name
}

func imageExtension(mimeType string, data []byte) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png", "png":
		return ".png"
	case "image/jpeg", "image/jpg", "jpeg", "jpg":
		return ".jpg"
	case "image/webp", "webp":
		return ".webp"
	}

	if bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return ".png"
	}

	return ".jpg"
}
