// Package shading implements the per-pixel lighting model used by the scene
// renderer: a shared ambient term plus two directional lights, each with a
// Lambert diffuse lobe and a reflection-vector specular lobe.
//
// The GLSL program in internal/opengl evaluates the same formula; Shade is
// the reference used by the software backend and by tests.
package shading

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/core"
)

// LightCount is the number of directional lights the model evaluates.
const LightCount = 2

var ErrInvalidLighting = errors.New("invalid lighting")

// DirectionalLight has parallel rays travelling along Direction.
type DirectionalLight struct {
	Direction mgl32.Vec3 // unit length after Normalized
	Color     core.Color
	Intensity float32
}

// Lighting is the per-frame parameter block read by Shade.
//
// SpecularPower of 0 makes pow(x, 0) == 1 for every pixel, so the specular
// term becomes a flat SpecularColor*Intensity wash over the whole mesh.
type Lighting struct {
	Ambient        core.Color
	Lights         [LightCount]DirectionalLight
	SpecularColor  core.Color
	SpecularPower  float32
	CameraPosition mgl32.Vec3
}

// Surface is one covered pixel as seen by the lighting model.
type Surface struct {
	WorldPosition mgl32.Vec3
	Normal        mgl32.Vec3 // interpolated, may be denormalized but never zero
	Base          core.Color // texture-sampled base color
}

// DefaultLighting is a warm key light from above-left and a cool fill.
func DefaultLighting() Lighting {
	return Lighting{
		Ambient: core.Color{R: 0.2, G: 0.2, B: 0.22, A: 1},
		Lights: [LightCount]DirectionalLight{
			{
				Direction: mgl32.Vec3{-0.5, -1, -0.5}.Normalize(),
				Color:     core.Color{R: 1, G: 0.95, B: 0.8, A: 1},
				Intensity: 0.9,
			},
			{
				Direction: mgl32.Vec3{0.6, -0.3, 0.7}.Normalize(),
				Color:     core.Color{R: 0.55, G: 0.65, B: 1, A: 1},
				Intensity: 0.35,
			},
		},
		SpecularColor:  core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1},
		SpecularPower:  16,
		CameraPosition: mgl32.Vec3{0, 1.5, 6},
	}
}

// Validate rejects parameters that would produce non-finite colors.
func (l *Lighting) Validate() error {
	for i, light := range l.Lights {
		if !finiteVec(light.Direction) || light.Direction.Len() == 0 {
			return fmt.Errorf("%w: light %d direction %v", ErrInvalidLighting, i, light.Direction)
		}
		if !finite(light.Intensity) || light.Intensity < 0 {
			return fmt.Errorf("%w: light %d intensity %v", ErrInvalidLighting, i, light.Intensity)
		}
	}
	if !finite(l.SpecularPower) || l.SpecularPower < 0 {
		return fmt.Errorf("%w: specular power %v", ErrInvalidLighting, l.SpecularPower)
	}
	if !finiteVec(l.CameraPosition) {
		return fmt.Errorf("%w: camera position %v", ErrInvalidLighting, l.CameraPosition)
	}
	return nil
}

// Normalized returns a copy with unit-length light directions.
func (l Lighting) Normalized() Lighting {
	for i := range l.Lights {
		if l.Lights[i].Direction.Len() > 0 {
			l.Lights[i].Direction = l.Lights[i].Direction.Normalize()
		}
	}
	return l
}

// Shade evaluates the lit model for one pixel:
//
//	rgb = base.rgb * (ambient + sum(diffuse)) + sum(specular)
//	a   = base.a
func Shade(s Surface, l *Lighting) core.Color {
	n := s.Normal.Normalize()

	viewDir := l.CameraPosition.Sub(s.WorldPosition)
	if viewDir.Len() > 0 {
		viewDir = viewDir.Normalize()
	}

	light := l.Ambient.RGB()
	var specular mgl32.Vec3
	for i := range l.Lights {
		dl := &l.Lights[i]

		diffuse := math32.Max(0, n.Dot(dl.Direction.Mul(-1)))
		light = light.Add(dl.Color.RGB().Mul(diffuse * dl.Intensity))

		r := Reflect(dl.Direction, n)
		spec := float32(1)
		if l.SpecularPower != 0 {
			spec = math32.Pow(math32.Max(0, r.Dot(viewDir)), l.SpecularPower)
		}
		specular = specular.Add(l.SpecularColor.RGB().Mul(spec * dl.Intensity))
	}

	base := s.Base.RGB()
	rgb := mgl32.Vec3{base[0] * light[0], base[1] * light[1], base[2] * light[2]}.Add(specular)
	return core.Color{R: rgb[0], G: rgb[1], B: rgb[2], A: s.Base.A}
}

// ShadeUnlit is the variant bound to LayoutPositionTexture meshes.
func ShadeUnlit(base core.Color) core.Color {
	return base
}

// Reflect mirrors incident direction i about normal n (GLSL reflect).
func Reflect(i, n mgl32.Vec3) mgl32.Vec3 {
	return i.Sub(n.Mul(2 * n.Dot(i)))
}

func finite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

func finiteVec(v mgl32.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
