package util

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestFitLongestSideShrinksLargeImages(t *testing.T) {
	src := pngOf(t, 200, 100)
	out, mime, resized, err := FitLongestSide(src, "image/png", 50)
	if err != nil {
		t.Fatalf("FitLongestSide: %v", err)
	}
	if !resized || mime != "image/jpeg" {
		t.Fatalf("expected a resized jpeg, got resized=%v mime=%s", resized, mime)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}
	if cfg.Width != 50 || cfg.Height != 25 {
		t.Fatalf("unexpected size %dx%d", cfg.Width, cfg.Height)
	}

	out, _, _, err = FitLongestSide(pngOf(t, 40, 120), "image/png", 60)
	if err != nil {
		t.Fatalf("FitLongestSide portrait: %v", err)
	}
	if cfg, _ := jpeg.DecodeConfig(bytes.NewReader(out)); cfg.Width != 20 || cfg.Height != 60 {
		t.Fatalf("unexpected portrait size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestFitLongestSideKeepsSmallOrUnknown(t *testing.T) {
	src := pngOf(t, 30, 20)
	out, mime, resized, err := FitLongestSide(src, "image/png", 50)
	if err != nil || resized || mime != "image/png" || !bytes.Equal(out, src) {
		t.Fatalf("small image must pass through: resized=%v mime=%s err=%v", resized, mime, err)
	}

	junk := []byte("not an image at all")
	out, mime, resized, err = FitLongestSide(junk, "image/heic", 50)
	if err != nil || resized || mime != "image/heic" || !bytes.Equal(out, junk) {
		t.Fatalf("undecodable input must pass through: resized=%v mime=%s err=%v", resized, mime, err)
	}

	if _, _, resized, _ := FitLongestSide(src, "image/png", 0); resized {
		t.Fatal("maxDim 0 disables resizing")
	}
}
