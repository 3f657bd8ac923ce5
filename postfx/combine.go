package postfx

import "bloom-engine/core"

// CombinePixel adds the scaled glow to the base color. Nothing is clamped,
// so results may exceed 1.0; alpha is taken from base.
func CombinePixel(base, bloom core.Color, intensity float32) core.Color {
	return core.Color{
		R: base.R + bloom.R*intensity,
		G: base.G + bloom.G*intensity,
		B: base.B + bloom.B*intensity,
		A: base.A,
	}
}

// Combine writes base + bloom*intensity into dst.
func Combine(dst, base, bloom *Image, intensity float32) error {
	return CombineRows(dst, base, bloom, intensity, 0, base.Height)
}

// CombineRows composites rows [y0,y1).
func CombineRows(dst, base, bloom *Image, intensity float32, y0, y1 int) error {
	if err := dst.sameSize(base); err != nil {
		return err
	}
	if err := base.sameSize(bloom); err != nil {
		return err
	}
	if err := checkRows(base, y0, y1); err != nil {
		return err
	}
	for i := y0 * base.Width; i < y1*base.Width; i++ {
		dst.Pix[i] = CombinePixel(base.Pix[i], bloom.Pix[i], intensity)
	}
	return nil
}
