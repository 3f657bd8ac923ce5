// Package snapshot writes rendered frames to image files.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"

	"bloom-engine/postfx"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// Options control how a frame is written. Zero values keep the frame size
// and use JPEG quality 90.
type Options struct {
	Width, Height int
	Quality       int
}

// Save encodes img to path, picking the encoder from the extension (.png,
// .jpg/.jpeg or .bmp). Channels are clamped to [0,1] before quantizing, so
// bloom highlights above 1 saturate to white.
func Save(path string, img *postfx.Image, opts Options) error {
	enc, err := encoderFor(path, opts)
	if err != nil {
		return err
	}
	var out image.Image = ToNRGBA(img)
	if opts.Width > 0 && opts.Height > 0 && (opts.Width != img.Width || opts.Height != img.Height) {
		out = transform.Resize(out, opts.Width, opts.Height, transform.Linear)
	}
	if err := imgio.Save(path, out, enc); err != nil {
		return fmt.Errorf("save snapshot %q: %w", path, err)
	}
	return nil
}

func encoderFor(path string, opts Options) (imgio.Encoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return imgio.PNGEncoder(), nil
	case ".jpg", ".jpeg":
		q := opts.Quality
		if q <= 0 || q > 100 {
			q = 90
		}
		return imgio.JPEGEncoder(q), nil
	case ".bmp":
		return imgio.BMPEncoder(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// ToNRGBA quantizes a float frame to 8 bits per channel.
func ToNRGBA(img *postfx.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.At(x, y)
			out.SetNRGBA(x, y, color.NRGBA{R: quantize(c.R), G: quantize(c.G), B: quantize(c.B), A: quantize(c.A)})
		}
	}
	return out
}

func quantize(v float32) uint8 {
	if !(v > 0) { // NaN lands here too
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
