package trajectory

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// maxEdge bounds the longer screenshot dimension before prompt inlining.
// Keeps per-image token cost predictable across providers.
const maxEdge = 800

// EncodeScreenshot loads a PNG or JPEG screenshot, downscales it so its
// longer edge is at most maxEdge pixels (aspect ratio preserved, never
// upscaled), and returns it re-encoded as base64 PNG.
func EncodeScreenshot(path string) (data, mediaType string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("opening screenshot: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", "", fmt.Errorf("decoding screenshot %s: %w", path, err)
	}

	img = downscale(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", "", fmt.Errorf("encoding screenshot %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), "image/png", nil
}

func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxEdge
		nh = h * maxEdge / w
	} else {
		nh = maxEdge
		nw = w * maxEdge / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
