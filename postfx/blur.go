package postfx

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/core"
)

const (
	// KernelRadius is K: taps run over [-K, K].
	KernelRadius = 7
	KernelTaps   = 2*KernelRadius + 1
)

// Direction selects the axis of one blur pass.
type Direction int

const (
	Horizontal Direction = iota
	Vertical
)

func (d Direction) String() string {
	if d == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Vector is the unit step of the pass in texel space.
func (d Direction) Vector() mgl32.Vec2 {
	if d == Vertical {
		return mgl32.Vec2{0, 1}
	}
	return mgl32.Vec2{1, 0}
}

// BlurParams drives one 1-D blur pass.
type BlurParams struct {
	Direction Direction
	Amount    float32 // sigma, also the tap spacing in texels
}

// GaussianWeight is (1/sqrt(2*pi*sigma^2)) * exp(-i^2 / (2*sigma^2)).
func GaussianWeight(i int, sigma float32) float32 {
	fi := float32(i)
	twoSigmaSq := 2 * sigma * sigma
	return (1 / math32.Sqrt(math32.Pi*twoSigmaSq)) * math32.Exp(-fi*fi/twoSigmaSq)
}

// Kernel returns the KernelTaps weights for sigma, index 0 being tap -K.
// They are not normalized; BlurPixel divides by their sum.
func Kernel(sigma float32) [KernelTaps]float32 {
	var k [KernelTaps]float32
	for i := -KernelRadius; i <= KernelRadius; i++ {
		k[i+KernelRadius] = GaussianWeight(i, sigma)
	}
	return k
}

// BlurPixel convolves src around texel (x, y) along p.Direction. The result
// is divided by the total weight, so a constant image is left unchanged.
func BlurPixel(src *Image, x, y int, p BlurParams) core.Color {
	return blurPixel(src, x, y, p.Direction.Vector(), p.Amount, Kernel(p.Amount))
}

func blurPixel(src *Image, x, y int, dir mgl32.Vec2, amount float32, kernel [KernelTaps]float32) core.Color {
	var acc core.Color
	var total float32
	for i := -KernelRadius; i <= KernelRadius; i++ {
		w := kernel[i+KernelRadius]
		off := float32(i) * amount
		s := src.SampleTexel(float32(x)+dir[0]*off, float32(y)+dir[1]*off)
		acc.R += s.R * w
		acc.G += s.G * w
		acc.B += s.B * w
		acc.A += s.A * w
		total += w
	}
	return acc.Scale(1 / total)
}

// Blur runs one separable pass from src into dst. dst must not alias src.
func Blur(dst, src *Image, p BlurParams) error {
	return BlurRows(dst, src, p, 0, src.Height)
}

// BlurRows runs one pass over rows [y0,y1) of dst.
func BlurRows(dst, src *Image, p BlurParams, y0, y1 int) error {
	if err := dst.sameSize(src); err != nil {
		return err
	}
	if err := checkRows(src, y0, y1); err != nil {
		return err
	}
	dir := p.Direction.Vector()
	kernel := Kernel(p.Amount)
	for y := y0; y < y1; y++ {
		for x := 0; x < src.Width; x++ {
			dst.Set(x, y, blurPixel(src, x, y, dir, p.Amount, kernel))
		}
	}
	return nil
}
