package trajectory

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestImage(t *testing.T, name string, w, h int, encode func(*os.File, image.Image) error) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 10 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, encode(f, img))
	return path
}

func decodeResult(t *testing.T, data, mediaType string) image.Image {
	t.Helper()
	require.Equal(t, "image/png", mediaType)
	raw, err := base64.StdEncoding.DecodeString(data)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestEncodeScreenshotDownscalesWide(t *testing.T) {
	path := writeTestImage(t, "wide.png", 2000, 1500, func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})

	data, mediaType, err := EncodeScreenshot(path)
	require.NoError(t, err)

	img := decodeResult(t, data, mediaType)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestEncodeScreenshotDownscalesTall(t *testing.T) {
	path := writeTestImage(t, "tall.png", 400, 1600, func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})

	data, mediaType, err := EncodeScreenshot(path)
	require.NoError(t, err)

	img := decodeResult(t, data, mediaType)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 800, img.Bounds().Dy())
}

func TestEncodeScreenshotSmallImageUntouched(t *testing.T) {
	path := writeTestImage(t, "small.png", 640, 480, func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})

	data, mediaType, err := EncodeScreenshot(path)
	require.NoError(t, err)

	img := decodeResult(t, data, mediaType)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
}

func TestEncodeScreenshotJPEGInput(t *testing.T) {
	path := writeTestImage(t, "shot.jpg", 1024, 768, func(f *os.File, img image.Image) error {
		return jpeg.Encode(f, img, nil)
	})

	data, mediaType, err := EncodeScreenshot(path)
	require.NoError(t, err)

	img := decodeResult(t, data, mediaType)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestEncodeScreenshotMissingFile(t *testing.T) {
	_, _, err := EncodeScreenshot(filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)
}

func TestEncodeScreenshotCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, _, err := EncodeScreenshot(path)
	require.Error(t, err)
}
