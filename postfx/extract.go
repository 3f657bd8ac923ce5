package postfx

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/core"
)

// ExtractParams drives the bright-area extractor. Sensitivity is the color
// distance at which similarity falls to zero.
type ExtractParams struct {
	Threshold   float32
	TargetColor mgl32.Vec3
	Sensitivity float32
}

// Luminance is dot(rgb, (0.299, 0.587, 0.114)).
func Luminance(c core.Color) float32 {
	return c.Luminance()
}

// Similarity is 1 for an exact match with target, falling linearly to 0 at
// distance sensitivity and clamped to [0,1].
func Similarity(c core.Color, target mgl32.Vec3, sensitivity float32) float32 {
	d := c.RGB().Sub(target).Len()
	return saturate(1 - d/sensitivity)
}

// BloomFactor is max(0, luminance-threshold) scaled by color similarity.
func BloomFactor(c core.Color, p ExtractParams) float32 {
	brightness := math32.Max(0, Luminance(c)-p.Threshold)
	if brightness == 0 {
		return 0
	}
	return brightness * Similarity(c, p.TargetColor, p.Sensitivity)
}

// ExtractPixel scales the input color, alpha included, by its bloom factor.
func ExtractPixel(c core.Color, p ExtractParams) core.Color {
	return c.Scale(BloomFactor(c, p))
}

// Extract writes the glow candidates of src into dst.
func Extract(dst, src *Image, p ExtractParams) error {
	return ExtractRows(dst, src, p, 0, src.Height)
}

// ExtractRows runs the extractor over rows [y0,y1).
func ExtractRows(dst, src *Image, p ExtractParams, y0, y1 int) error {
	if err := dst.sameSize(src); err != nil {
		return err
	}
	if err := checkRows(src, y0, y1); err != nil {
		return err
	}
	for i := y0 * src.Width; i < y1*src.Width; i++ {
		dst.Pix[i] = ExtractPixel(src.Pix[i], p)
	}
	return nil
}

func saturate(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
