package software

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/pipeline"
	"bloom-engine/scene"
	"bloom-engine/shading"
)

// SceneRenderer rasterizes the frame's objects into the device's bound
// target with a z-buffer and per-pixel shading.
type SceneRenderer struct {
	dev *Device
}

func NewSceneRenderer(dev *Device) *SceneRenderer {
	return &SceneRenderer{dev: dev}
}

// clipVertex carries everything interpolated across a triangle.
type clipVertex struct {
	clip   mgl32.Vec4
	world  mgl32.Vec3
	normal mgl32.Vec3
	uv     mgl32.Vec2
}

func lerpVertex(a, b clipVertex, t float32) clipVertex {
	return clipVertex{
		clip:   a.clip.Add(b.clip.Sub(a.clip).Mul(t)),
		world:  a.world.Add(b.world.Sub(a.world).Mul(t)),
		normal: a.normal.Add(b.normal.Sub(a.normal).Mul(t)),
		uv:     a.uv.Add(b.uv.Sub(a.uv).Mul(t)),
	}
}

// screenVertex is a clipped vertex after the perspective divide. Attributes
// are pre-divided by w for perspective-correct interpolation.
type screenVertex struct {
	x, y, z float32
	invW    float32
	world   mgl32.Vec3
	normal  mgl32.Vec3
	uv      mgl32.Vec2
}

type triangle struct {
	v       [3]screenVertex
	texture *scene.Texture
	lit     bool
}

func (r *SceneRenderer) DrawScene(f *pipeline.Frame) error {
	t := r.dev.bound
	if t == nil {
		return fmt.Errorf("%w: nothing bound", pipeline.ErrTargetUnavailable)
	}
	w, h := t.Color.Width, t.Color.Height
	vp := f.ViewProjection()

	var tris []triangle
	for _, obj := range f.Objects {
		if err := r.validate(obj.Mesh); err != nil {
			return err
		}
		tris = appendTriangles(tris, obj, vp, w, h)
	}

	lighting := f.Lighting.Normalized()
	return r.dev.bands(h, func(y0, y1 int) error {
		for i := range tris {
			rasterize(t, &tris[i], &lighting, f.Wireframe, y0, y1)
		}
		return nil
	})
}

// validate checks m on every draw; meshes are plain data and may be edited
// between frames.
func (r *SceneRenderer) validate(m *scene.Mesh) error {
	if m == nil {
		return fmt.Errorf("%w: nil mesh", scene.ErrInvalidMesh)
	}
	return m.Validate()
}

// appendTriangles transforms, near-clips and projects one object.
func appendTriangles(out []triangle, obj pipeline.Object, vp mgl32.Mat4, w, h int) []triangle {
	m := obj.Mesh
	mvp := vp.Mul4(obj.World)
	normalMat := obj.World.Mat3().Inv().Transpose()
	lit := m.Layout.Lit()

	verts := make([]clipVertex, len(m.Vertices))
	for i, v := range m.Vertices {
		pos := v.Position.Vec4(1)
		verts[i] = clipVertex{
			clip:   mvp.Mul4x1(pos),
			world:  obj.World.Mul4x1(pos).Vec3(),
			normal: normalMat.Mul3x1(v.Normal),
			uv:     v.UV,
		}
	}

	for _, part := range m.DrawParts() {
		for i := part.Start; i+2 < part.Start+part.Count; i += 3 {
			poly := clipNear([]clipVertex{
				verts[m.Indices[i]],
				verts[m.Indices[i+1]],
				verts[m.Indices[i+2]],
			})
			for k := 1; k+1 < len(poly); k++ {
				out = append(out, triangle{
					v:       [3]screenVertex{project(poly[0], w, h), project(poly[k], w, h), project(poly[k+1], w, h)},
					texture: part.Texture,
					lit:     lit,
				})
			}
		}
	}
	return out
}

// clipNear clips a polygon against the near plane z >= -w.
func clipNear(in []clipVertex) []clipVertex {
	const eps = 1e-5
	dist := func(v clipVertex) float32 { return v.clip.Z() + v.clip.W() - eps }

	out := make([]clipVertex, 0, len(in)+1)
	for i := range in {
		a, b := in[i], in[(i+1)%len(in)]
		da, db := dist(a), dist(b)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, lerpVertex(a, b, da/(da-db)))
		}
	}
	return out
}

func project(v clipVertex, w, h int) screenVertex {
	invW := 1 / v.clip.W()
	ndc := v.clip.Vec3().Mul(invW)
	return screenVertex{
		x:      (ndc.X()*0.5 + 0.5) * float32(w),
		y:      (0.5 - ndc.Y()*0.5) * float32(h),
		z:      ndc.Z()*0.5 + 0.5,
		invW:   invW,
		world:  v.world.Mul(invW),
		normal: v.normal.Mul(invW),
		uv:     v.uv.Mul(invW),
	}
}

func length2(dx, dy float32) float32 {
	return math32.Sqrt(dx*dx + dy*dy)
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// rasterize fills the triangle's pixels within rows [y0,y1). Both windings
// are drawn. In wireframe mode only pixels within a pixel of an edge are
// kept.
func rasterize(t *Target, tri *triangle, l *shading.Lighting, wireframe bool, y0, y1 int) {
	a, b, c := &tri.v[0], &tri.v[1], &tri.v[2]
	area := edge(a.x, a.y, b.x, b.y, c.x, c.y)
	if area == 0 || math32.IsNaN(area) {
		return
	}

	w, h := t.Color.Width, t.Color.Height
	minX := max(0, int(math32.Floor(min(a.x, b.x, c.x))))
	maxX := min(w-1, int(math32.Ceil(max(a.x, b.x, c.x))))
	minY := max(y0, int(math32.Floor(min(a.y, b.y, c.y))))
	maxY := min(y1-1, h-1, int(math32.Ceil(max(a.y, b.y, c.y))))

	var lenA, lenB, lenC float32
	if wireframe {
		lenA = length2(c.x-b.x, c.y-b.y)
		lenB = length2(a.x-c.x, a.y-c.y)
		lenC = length2(b.x-a.x, b.y-a.y)
	}

	for py := minY; py <= maxY; py++ {
		for px := minX; px <= maxX; px++ {
			sx, sy := float32(px)+0.5, float32(py)+0.5
			w0 := edge(b.x, b.y, c.x, c.y, sx, sy) / area
			w1 := edge(c.x, c.y, a.x, a.y, sx, sy) / area
			w2 := edge(a.x, a.y, b.x, b.y, sx, sy) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			if wireframe {
				// distance to each edge in pixels
				dA := w0 * math32.Abs(area) / lenA
				dB := w1 * math32.Abs(area) / lenB
				dC := w2 * math32.Abs(area) / lenC
				if min(dA, dB, dC) > 1 {
					continue
				}
			}

			z := w0*a.z + w1*b.z + w2*c.z
			if z < 0 || z > 1 {
				continue
			}
			i := py*w + px
			if t.Depth != nil {
				if z >= t.Depth[i] {
					continue
				}
				t.Depth[i] = z
			}

			invW := w0*a.invW + w1*b.invW + w2*c.invW
			pw := 1 / invW
			uv := a.uv.Mul(w0).Add(b.uv.Mul(w1)).Add(c.uv.Mul(w2)).Mul(pw)
			base := tri.texture.Sample(uv.X(), uv.Y())

			col := shading.ShadeUnlit(base)
			if tri.lit {
				n := a.normal.Mul(w0).Add(b.normal.Mul(w1)).Add(c.normal.Mul(w2)).Mul(pw)
				// opposing vertex normals can cancel; never normalize zero
				if n.Len() > 0 {
					col = shading.Shade(shading.Surface{
						WorldPosition: a.world.Mul(w0).Add(b.world.Mul(w1)).Add(c.world.Mul(w2)).Mul(pw),
						Normal:        n,
						Base:          base,
					}, l)
				}
			}
			t.Color.Pix[i] = col
		}
	}
}
