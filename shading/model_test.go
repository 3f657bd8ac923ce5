package shading

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom-engine/core"
)

// overheadLighting has one white light straight down and the second light off.
func overheadLighting() Lighting {
	return Lighting{
		Ambient: core.Color{R: 0.1, G: 0.1, B: 0.1, A: 1},
		Lights: [LightCount]DirectionalLight{
			{Direction: mgl32.Vec3{0, -1, 0}, Color: core.ColorWhite, Intensity: 1},
			{Direction: mgl32.Vec3{1, 0, 0}, Color: core.ColorWhite, Intensity: 0},
		},
		SpecularColor:  core.ColorBlack,
		SpecularPower:  8,
		CameraPosition: mgl32.Vec3{0, 5, 0},
	}
}

func assertColor(t *testing.T, want, got core.Color) {
	t.Helper()
	assert.InDelta(t, want.R, got.R, 1e-5, "R")
	assert.InDelta(t, want.G, got.G, 1e-5, "G")
	assert.InDelta(t, want.B, got.B, 1e-5, "B")
	assert.InDelta(t, want.A, got.A, 1e-5, "A")
}

func TestShadeDiffuse(t *testing.T) {
	l := overheadLighting()
	base := core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}

	tests := []struct {
		name   string
		normal mgl32.Vec3
		want   float32
	}{
		{"facing light", mgl32.Vec3{0, 1, 0}, 0.5 * (0.1 + 1)},
		{"facing away", mgl32.Vec3{0, -1, 0}, 0.5 * 0.1},
		{"grazing", mgl32.Vec3{1, 0, 0}, 0.5 * 0.1},
		{"denormalized", mgl32.Vec3{0, 3, 0}, 0.5 * (0.1 + 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Shade(Surface{Normal: tc.normal, Base: base}, &l)
			assertColor(t, core.Color{R: tc.want, G: tc.want, B: tc.want, A: 1}, got)
		})
	}
}

func TestShadeSpecularMirror(t *testing.T) {
	l := overheadLighting()
	l.Ambient = core.ColorBlack
	l.SpecularColor = core.Color{R: 0.2, G: 0.2, B: 0.2, A: 1}

	// Black base isolates the specular term; the reflected ray points at the camera.
	got := Shade(Surface{Normal: mgl32.Vec3{0, 1, 0}, Base: core.ColorBlack}, &l)
	assertColor(t, core.Color{R: 0.2, G: 0.2, B: 0.2, A: 1}, got)

	// Moving the camera off the mirror direction weakens the highlight.
	l.CameraPosition = mgl32.Vec3{3, 3, 0}
	off := Shade(Surface{Normal: mgl32.Vec3{0, 1, 0}, Base: core.ColorBlack}, &l)
	assert.Less(t, off.R, float32(0.2))
	assert.Greater(t, off.R, float32(0))
}

func TestShadeZeroSpecularPowerIsFlat(t *testing.T) {
	l := overheadLighting()
	l.Ambient = core.ColorBlack
	l.SpecularColor = core.Color{R: 0.3, G: 0.3, B: 0.3, A: 1}
	l.SpecularPower = 0
	// Camera below the surface: the reflected ray points away from it.
	l.CameraPosition = mgl32.Vec3{0, -5, 0}

	got := Shade(Surface{Normal: mgl32.Vec3{0, 1, 0}, Base: core.ColorBlack}, &l)
	assertColor(t, core.Color{R: 0.3, G: 0.3, B: 0.3, A: 1}, got)
}

func TestShadeTwoLightsAccumulate(t *testing.T) {
	l := overheadLighting()
	l.Ambient = core.ColorBlack
	l.Lights[1] = DirectionalLight{Direction: mgl32.Vec3{0, -1, 0}, Color: core.ColorRed, Intensity: 0.5}

	got := Shade(Surface{Normal: mgl32.Vec3{0, 1, 0}, Base: core.ColorWhite}, &l)
	assertColor(t, core.Color{R: 1.5, G: 1, B: 1, A: 1}, got)
}

func TestShadeKeepsBaseAlpha(t *testing.T) {
	l := DefaultLighting()
	got := Shade(Surface{Normal: mgl32.Vec3{0, 1, 0}, Base: core.Color{R: 1, G: 1, B: 1, A: 0.25}}, &l)
	assert.Equal(t, float32(0.25), got.A)
	assert.Equal(t, core.ColorRed, ShadeUnlit(core.ColorRed))
}

func TestReflect(t *testing.T) {
	r := Reflect(mgl32.Vec3{1, -1, 0}, mgl32.Vec3{0, 1, 0})
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, r)
}

func TestLightingValidate(t *testing.T) {
	l := DefaultLighting()
	require.NoError(t, l.Validate())

	bad := l
	bad.Lights[1].Direction = mgl32.Vec3{}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidLighting)

	bad = l
	bad.SpecularPower = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidLighting)

	bad = l
	bad.Lights[0].Intensity = -0.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidLighting)
}

func TestLightingNormalized(t *testing.T) {
	l := overheadLighting()
	l.Lights[0].Direction = mgl32.Vec3{0, -4, 0}
	n := l.Normalized()
	assert.InDelta(t, 1.0, n.Lights[0].Direction.Len(), 1e-6)
	assert.InDelta(t, 4.0, l.Lights[0].Direction.Len(), 1e-6, "receiver is not modified")
}
