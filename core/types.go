package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Color is a linear RGBA color. Components are not clamped: render targets
// hold values above 1.0 until they reach the display.
type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite       = Color{1, 1, 1, 1}
	ColorBlack       = Color{0, 0, 0, 1}
	ColorTransparent = Color{0, 0, 0, 0}
	ColorRed         = Color{1, 0, 0, 1}
	ColorGreen       = Color{0, 1, 0, 1}
	ColorBlue        = Color{0, 0, 1, 1}
	ColorYellow      = Color{1, 1, 0, 1}
)

// Luma weights used for perceptual brightness (Rec. 601).
var LumaWeights = mgl32.Vec3{0.299, 0.587, 0.114}

func NewColor(r, g, b, a float32) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// ColorFromVec3 builds an opaque color from an RGB vector.
func ColorFromVec3(v mgl32.Vec3) Color {
	return Color{R: v[0], G: v[1], B: v[2], A: 1}
}

func (c Color) RGB() mgl32.Vec3 {
	return mgl32.Vec3{c.R, c.G, c.B}
}

// Add sums the RGB channels and keeps c's alpha.
func (c Color) Add(other Color) Color {
	return Color{R: c.R + other.R, G: c.G + other.G, B: c.B + other.B, A: c.A}
}

// Scale multiplies all four channels.
func (c Color) Scale(s float32) Color {
	return Color{R: c.R * s, G: c.G * s, B: c.B * s, A: c.A * s}
}

// Mul is the component-wise product of all four channels.
func (c Color) Mul(other Color) Color {
	return Color{R: c.R * other.R, G: c.G * other.G, B: c.B * other.B, A: c.A * other.A}
}

// Luminance returns dot(rgb, LumaWeights).
func (c Color) Luminance() float32 {
	return c.RGB().Dot(LumaWeights)
}

// VertexLayout names the attribute set a mesh carries. The shading variant
// bound to a draw call must match it.
type VertexLayout int

const (
	LayoutPositionTexture       VertexLayout = iota // unlit
	LayoutPositionNormalTexture                     // lit
)

func (l VertexLayout) String() string {
	switch l {
	case LayoutPositionTexture:
		return "PositionTexture"
	case LayoutPositionNormalTexture:
		return "PositionNormalTexture"
	}
	return "unknown"
}

// Lit reports whether the layout carries normals.
func (l VertexLayout) Lit() bool {
	return l == LayoutPositionNormalTexture
}

// Vertex is the CPU-side vertex. Normal is ignored for LayoutPositionTexture.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}
