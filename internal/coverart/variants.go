package coverart

import (
	"os"
	"path/filepath"
	"strings"
)

const VariantOriginal = "original"

const VariantPlayer = "player"

const VariantGrid = "grid"

const ThumbnailExtension = ".avif"

const variantSeparator = "__"

type ThumbnailSpec struct {
	Variant string
	Size    int
}

const DefaultPlayerThumbnailSize = 96

// DefaultThumbnailSpecs returns the player thumbnail at playerSize plus the
// fixed grid size.
func DefaultThumbnailSpecs(playerSize int) []ThumbnailSpec {
	if playerSize <= 0 {
		playerSize = DefaultPlayerThumbnailSize
	}
	return []ThumbnailSpec{
		{Variant: VariantPlayer, Size: playerSize},
		{Variant: VariantGrid, Size: 320},
	}
}

func NormalizeVariant(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case VariantPlayer:
		return VariantPlayer
	case VariantGrid:
		return VariantGrid
	default:
		return VariantOriginal
	}
}

// VariantPath maps an artwork file to the path of one of its thumbnails.
func VariantPath(artworkPath string, variant string) string {
	resolved := NormalizeVariant(variant)
	if resolved == VariantOriginal {
		return artworkPath
	}

	base := strings.TrimSuffix(filepath.Base(artworkPath), filepath.Ext(artworkPath))
	return filepath.Join(filepath.Dir(artworkPath), base+variantSeparator+resolved+ThumbnailExtension)
}

// VariantOwner returns the artwork base name a thumbnail filename belongs
// to, or false when filename is not a thumbnail.
func VariantOwner(filename string) (string, bool) {
	name := strings.TrimSpace(filepath.Base(filename))
	if !strings.HasSuffix(strings.ToLower(name), ThumbnailExtension) {
		return "", false
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	separator := strings.LastIndex(base, variantSeparator)
	if separator <= 0 {
		return "", false
	}

	if NormalizeVariant(base[separator+len(variantSeparator):]) == VariantOriginal {
		return "", false
	}

	return base[:separator], true
}

// OrphanVariants lists thumbnails in dir whose original artwork is gone.
func OrphanVariants(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	originals := make(map[string]struct{}, len(entries))
	variants := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if owner, ok := VariantOwner(entry.Name()); ok {
			variants[entry.Name()] = owner
			continue
		}

		name := entry.Name()
		originals[strings.TrimSuffix(name, filepath.Ext(name))] = struct{}{}
	}

	orphans := make([]string, 0)
	for name, owner := range variants {
		if _, ok := originals[owner]; ok {
			continue
		}
		orphans = append(orphans, filepath.Join(dir, name))
	}

	return orphans, nil
}
