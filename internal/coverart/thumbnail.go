package coverart

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/avif"
	"golang.org/x/image/draw"

	"cadence/internal/storage"
)

const (
	thumbnailQuality = 60
	thumbnailSpeed   = 8
)

// WriteThumbnail decodes source, centre-crops it to a square, scales it to
// size pixels and stores it as AVIF at destPath.
func WriteThumbnail(source []byte, destPath string, size int) error {
	if size <= 0 {
		return fmt.Errorf("thumbnail size must be positive")
	}

	img, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return fmt.Errorf("decode artwork: %w", err)
	}

	thumb := scaleSquare(img, size)

	var encoded bytes.Buffer
	if err := avif.Encode(&encoded, thumb, avif.Options{Quality: thumbnailQuality, Speed: thumbnailSpeed}); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	return storage.WriteFileAtomic(destPath, &encoded)
}

func scaleSquare(img image.Image, size int) *image.NRGBA {
	bounds := img.Bounds()
	side := min(bounds.Dx(), bounds.Dy())
	crop := image.Rect(0, 0, side, side).Add(image.Pt(
		bounds.Min.X+(bounds.Dx()-side)/2,
		bounds.Min.Y+(bounds.Dy()-side)/2,
	))

	if side < size {
		size = max(side, 1)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	return dst
}
