package palette

import (
	"encoding/json"
	"image"
	"image/color"
	"testing"
)

func TestExtractFromImageAssignsRoles(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	fillRect(img, image.Rect(0, 0, 256, 128), color.NRGBA{R: 220, G: 30, B: 40, A: 255})
	fillRect(img, image.Rect(0, 128, 128, 256), color.NRGBA{R: 20, G: 30, B: 90, A: 255})
	fillRect(img, image.Rect(128, 128, 256, 256), color.NRGBA{R: 200, G: 200, B: 190, A: 255})

	extractor := NewExtractor(Options{MaxDimension: 64})
	palette, err := extractor.ExtractFromImage(img)
	if err != nil {
		t.Fatalf("extract palette: %v", err)
	}

	if palette.Dominant == "" {
		t.Fatal("expected dominant color")
	}
	if palette.Average == "" {
		t.Fatal("expected average color")
	}
	if palette.Vibrant == "" {
		t.Fatal("expected vibrant color for saturated red")
	}
	if palette.DarkVibrant == "" {
		t.Fatal("expected dark vibrant color for navy")
	}
	if palette.LightMuted == "" {
		t.Fatal("expected light muted color for grey")
	}

	seen := map[string]string{}
	for role, value := range palette.Roles() {
		if role == "dominant" || role == "average" {
			continue
		}
		if other, ok := seen[value]; ok {
			t.Fatalf("roles %s and %s share swatch %s", role, other, value)
		}
		seen[value] = role
	}
}

func TestPaletteJSONOmitsEmptyRoles(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(Palette{Dominant: "#112233"})
	if err != nil {
		t.Fatalf("marshal palette: %v", err)
	}
	if string(encoded) != `{"dominant":"#112233"}` {
		t.Fatalf("unexpected encoding %s", encoded)
	}
	if !(Palette{}).IsEmpty() {
		t.Fatal("zero palette should be empty")
	}
}

func TestExtractFromImageRejectsTransparentImages(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	extractor := NewExtractor(Options{})

	_, err := extractor.ExtractFromImage(img)
	if err == nil {
		t.Fatal("expected error for fully transparent image")
	}
}

func TestExtractFromBytesRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := NewExtractor(Options{}).ExtractFromBytes([]byte("not an image"))
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func fillRect(img *image.NRGBA, rect image.Rectangle, fill color.NRGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
}
