package postfx

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"bloom-engine/core"
)

var ErrSizeMismatch = errors.New("image size mismatch")

// Image is a row-major float RGBA buffer, the CPU counterpart of a color
// render target.
type Image struct {
	Width  int
	Height int
	Pix    []core.Color
}

func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]core.Color, width*height),
	}
}

func (img *Image) At(x, y int) core.Color {
	return img.Pix[y*img.Width+x]
}

func (img *Image) Set(x, y int, c core.Color) {
	img.Pix[y*img.Width+x] = c
}

func (img *Image) Fill(c core.Color) {
	for i := range img.Pix {
		img.Pix[i] = c
	}
}

func (img *Image) Clone() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Pix: make([]core.Color, len(img.Pix))}
	copy(out.Pix, img.Pix)
	return out
}

// Sample reads at texture coordinates with bilinear filtering and
// clamp-to-edge addressing. (0,0) is the top-left corner of the image.
func (img *Image) Sample(u, v float32) core.Color {
	return img.SampleTexel(u*float32(img.Width)-0.5, v*float32(img.Height)-0.5)
}

// SampleTexel reads at texel coordinates where integers are texel centers.
// Coordinates outside the image clamp to the nearest edge texel, so nothing
// wraps around from the opposite side.
func (img *Image) SampleTexel(x, y float32) core.Color {
	fx := math32.Floor(x)
	fy := math32.Floor(y)
	tx := x - fx
	ty := y - fy

	x0 := clampInt(int(fx), 0, img.Width-1)
	x1 := clampInt(int(fx)+1, 0, img.Width-1)
	y0 := clampInt(int(fy), 0, img.Height-1)
	y1 := clampInt(int(fy)+1, 0, img.Height-1)

	c00 := img.At(x0, y0)
	if tx == 0 && ty == 0 {
		return c00
	}
	c10 := img.At(x1, y0)
	c01 := img.At(x0, y1)
	c11 := img.At(x1, y1)

	top := lerp(c00, c10, tx)
	bottom := lerp(c01, c11, tx)
	return lerp(top, bottom, ty)
}

func (img *Image) sameSize(other *Image) error {
	if img.Width != other.Width || img.Height != other.Height {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, img.Width, img.Height, other.Width, other.Height)
	}
	return nil
}

func lerp(a, b core.Color, t float32) core.Color {
	if t == 0 {
		return a
	}
	return core.Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: a.A + (b.A-a.A)*t,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// checkRows validates a [y0,y1) band against an image height.
func checkRows(img *Image, y0, y1 int) error {
	if y0 < 0 || y1 > img.Height || y0 > y1 {
		return fmt.Errorf("row range [%d,%d) outside image of height %d", y0, y1, img.Height)
	}
	return nil
}
