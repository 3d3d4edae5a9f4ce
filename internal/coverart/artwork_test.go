package coverart

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Beyonce_Deja_Vu", SanitizeName("Beyoncé_Déjà Vu", 64))
	assert.Equal(t, "AC_DC_Back_in_Black", SanitizeName("AC/DC_Back in Black", 64))
	assert.Equal(t, "artwork", SanitizeName("???", 64))

	long := SanitizeName(strings.Repeat("a", 100), 64)
	assert.Len(t, long, 64)
}

func TestWriterSaveAndRemove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := NewWriter(Options{Dir: dir})

	data := pngBytes(t, 8, 8)
	path, err := writer.Save("Queen", "Bohemian Rhapsody", data, "image/png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Queen_Bohemian_Rhapsody.png"), path)

	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	require.NoError(t, writer.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = writer.Save("a", "b", nil, "image/png")
	assert.Error(t, err)
}

func TestImageExtensionSniffsPNG(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".png", imageExtension("", pngBytes(t, 1, 1)))
	assert.Equal(t, ".jpg", imageExtension("", []byte{0xff, 0xd8, 0xff}))
	assert.Equal(t, ".jpg", imageExtension("image/jpeg", nil))
}

func TestScaleSquareCropsAndClamps(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	scaled := scaleSquare(src, 10)
	assert.Equal(t, image.Rect(0, 0, 10, 10), scaled.Bounds())

	small := scaleSquare(src, 96)
	assert.Equal(t, image.Rect(0, 0, 20, 20), small.Bounds())
}

func TestVariantPaths(t *testing.T) {
	t.Parallel()

	path := filepath.Join("cache", "Queen_Bohemian.jpg")
	assert.Equal(t, filepath.Join("cache", "Queen_Bohemian__player.avif"), VariantPath(path, VariantPlayer))
	assert.Equal(t, path, VariantPath(path, "unknown"))

	owner, ok := VariantOwner("Queen_Bohemian__grid.avif")
	require.True(t, ok)
	assert.Equal(t, "Queen_Bohemian", owner)

	_, ok = VariantOwner("Queen_Bohemian.jpg")
	assert.False(t, ok)
}

func TestOrphanVariants(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"kept.jpg", "kept__player.avif", "gone__player.avif", "gone__grid.avif"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	orphans, err := OrphanVariants(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "gone__player.avif"),
		filepath.Join(dir, "gone__grid.avif"),
	}, orphans)

	missing, err := OrphanVariants(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func pngBytes(t *testing.T, width int, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}

	var buffer bytes.Buffer
	require.NoError(t, png.Encode(&buffer, img))
	return buffer.Bytes()
}
