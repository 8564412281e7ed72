package util

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png" // decoder registration

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // decoder registration
)

// FitLongestSide shrinks an image whose longer side exceeds maxDim and re-encodes
// it as JPEG. Images within bounds, GIFs and formats without a registered decoder
// (HEIC) come back unchanged with resized=false.
func FitLongestSide(data []byte, mime string, maxDim int) (out []byte, outMIME string, resized bool, err error) {
	if maxDim <= 0 || mime == "image/gif" {
		return data, mime, false, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return data, mime, false, nil
	}
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return data, mime, false, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", false, err
	}
	b := img.Bounds()
	if b.Dx() >= b.Dy() {
		img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	} else {
		img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", false, err
	}
	return buf.Bytes(), "image/jpeg", true, nil
}
