package scene

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/chewxy/math32"
	"golang.org/x/image/draw"

	"bloom-engine/core"
)

// Texture holds CPU-side pixel data for a 2D texture.
// GLID is set by the OpenGL backend after upload; do not access directly.
type Texture struct {
	Name   string
	Width  int
	Height int
	// Pixels in RGBA8 format (4 bytes per pixel, row-major, top-to-bottom).
	Pixels []byte
	// GLID is the OpenGL texture object ID, set by opengl.UploadTexture.
	GLID uint32
}

// LoadTexture reads a PNG or JPEG file from disk and returns a CPU-side Texture.
func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture %q: %w", path, err)
	}
	defer f.Close()

	tex, err := DecodeTexture(path, f)
	if err != nil {
		return nil, fmt.Errorf("decode texture %q: %w", path, err)
	}
	return tex, nil
}

// DecodeTexture decodes a PNG or JPEG stream and converts it to RGBA8.
func DecodeTexture(name string, r io.Reader) (*Texture, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return TextureFromImage(name, img), nil
}

func decodeImageBytes(name string, data []byte) (*Texture, error) {
	return DecodeTexture(name, bytes.NewReader(data))
}

// TextureFromImage copies any image.Image into an RGBA8 texture.
func TextureFromImage(name string, img image.Image) *Texture {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return &Texture{
		Name:   name,
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: rgba.Pix,
	}
}

// NewSolidTexture creates a 1x1 texture with the given RGBA color values (0–255).
func NewSolidTexture(name string, r, g, b, a uint8) *Texture {
	return &Texture{
		Name:   name,
		Width:  1,
		Height: 1,
		Pixels: []byte{r, g, b, a},
	}
}

// SolidTextureFromColor quantizes c to a 1x1 RGBA8 texture.
func SolidTextureFromColor(name string, c core.Color) *Texture {
	return NewSolidTexture(name, toByte(c.R), toByte(c.G), toByte(c.B), toByte(c.A))
}

func toByte(v float32) uint8 {
	return uint8(math32.Floor(math32.Max(0, math32.Min(1, v))*255 + 0.5))
}

// Sample reads the texture with bilinear filtering and clamp-to-edge
// addressing. (0,0) is the first pixel row. A nil texture samples white.
func (t *Texture) Sample(u, v float32) core.Color {
	if t == nil || t.Width == 0 || t.Height == 0 {
		return core.ColorWhite
	}
	x := u*float32(t.Width) - 0.5
	y := v*float32(t.Height) - 0.5
	fx, fy := math32.Floor(x), math32.Floor(y)
	tx, ty := x-fx, y-fy

	x0 := clampIndex(int(fx), t.Width)
	x1 := clampIndex(int(fx)+1, t.Width)
	y0 := clampIndex(int(fy), t.Height)
	y1 := clampIndex(int(fy)+1, t.Height)

	top := mix(t.texel(x0, y0), t.texel(x1, y0), tx)
	bottom := mix(t.texel(x0, y1), t.texel(x1, y1), tx)
	return mix(top, bottom, ty)
}

func (t *Texture) texel(x, y int) core.Color {
	i := (y*t.Width + x) * 4
	p := t.Pixels[i : i+4 : i+4]
	return core.Color{
		R: float32(p[0]) / 255,
		G: float32(p[1]) / 255,
		B: float32(p[2]) / 255,
		A: float32(p[3]) / 255,
	}
}

func mix(a, b core.Color, t float32) core.Color {
	return core.Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: a.A + (b.A-a.A)*t,
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
