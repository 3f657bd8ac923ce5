package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/core"
)

// meshBuilder accumulates a triangle list and records material parts.
type meshBuilder struct {
	vertices  []core.Vertex
	indices   []uint16
	parts     []MeshPart
	partStart int
}

func (b *meshBuilder) vertex(pos, normal mgl32.Vec3, uv mgl32.Vec2) uint16 {
	b.vertices = append(b.vertices, core.Vertex{Position: pos, Normal: normal, UV: uv})
	return uint16(len(b.vertices) - 1)
}

func (b *meshBuilder) triangle(a, c, d uint16) {
	b.indices = append(b.indices, a, c, d)
}

// endPart closes the index range emitted since the previous part.
func (b *meshBuilder) endPart(name string, tex *Texture) {
	b.parts = append(b.parts, MeshPart{
		Name:    name,
		Start:   b.partStart,
		Count:   len(b.indices) - b.partStart,
		Texture: tex,
	})
	b.partStart = len(b.indices)
}

// cylinderSides emits an open cylinder between y0 and y1.
func (b *meshBuilder) cylinderSides(radius, y0, y1 float32, segments int) {
	first := uint16(len(b.vertices))
	for i := 0; i <= segments; i++ {
		theta := float32(i) * 2 * math32.Pi / float32(segments)
		cosT, sinT := math32.Cos(theta), math32.Sin(theta)
		normal := mgl32.Vec3{cosT, 0, sinT}
		u := float32(i) / float32(segments)
		b.vertex(mgl32.Vec3{cosT * radius, y0, sinT * radius}, normal, mgl32.Vec2{u, 1})
		b.vertex(mgl32.Vec3{cosT * radius, y1, sinT * radius}, normal, mgl32.Vec2{u, 0})
	}
	for i := 0; i < segments; i++ {
		base := first + uint16(i*2)
		b.triangle(base, base+1, base+2)
		b.triangle(base+2, base+1, base+3)
	}
}

// cone emits a cone with its base disc at y0 and apex at y1. The apex is
// split per segment so each side facet gets its own normal.
func (b *meshBuilder) cone(radius, y0, y1 float32, segments int) {
	height := y1 - y0
	for i := 0; i < segments; i++ {
		t0 := float32(i) * 2 * math32.Pi / float32(segments)
		t1 := float32(i+1) * 2 * math32.Pi / float32(segments)
		tm := (t0 + t1) / 2

		n0 := mgl32.Vec3{math32.Cos(t0) * height, radius, math32.Sin(t0) * height}.Normalize()
		n1 := mgl32.Vec3{math32.Cos(t1) * height, radius, math32.Sin(t1) * height}.Normalize()
		nm := mgl32.Vec3{math32.Cos(tm) * height, radius, math32.Sin(tm) * height}.Normalize()

		u0 := float32(i) / float32(segments)
		u1 := float32(i+1) / float32(segments)
		a := b.vertex(mgl32.Vec3{math32.Cos(t0) * radius, y0, math32.Sin(t0) * radius}, n0, mgl32.Vec2{u0, 1})
		c := b.vertex(mgl32.Vec3{0, y1, 0}, nm, mgl32.Vec2{(u0 + u1) / 2, 0})
		d := b.vertex(mgl32.Vec3{math32.Cos(t1) * radius, y0, math32.Sin(t1) * radius}, n1, mgl32.Vec2{u1, 1})
		b.triangle(a, c, d)
	}

	down := mgl32.Vec3{0, -1, 0}
	center := b.vertex(mgl32.Vec3{0, y0, 0}, down, mgl32.Vec2{0.5, 0.5})
	for i := 0; i < segments; i++ {
		t0 := float32(i) * 2 * math32.Pi / float32(segments)
		t1 := float32(i+1) * 2 * math32.Pi / float32(segments)
		a := b.vertex(mgl32.Vec3{math32.Cos(t0) * radius, y0, math32.Sin(t0) * radius}, down,
			mgl32.Vec2{math32.Cos(t0)*0.5 + 0.5, math32.Sin(t0)*0.5 + 0.5})
		c := b.vertex(mgl32.Vec3{math32.Cos(t1) * radius, y0, math32.Sin(t1) * radius}, down,
			mgl32.Vec2{math32.Cos(t1)*0.5 + 0.5, math32.Sin(t1)*0.5 + 0.5})
		b.triangle(center, c, a)
	}
}

// Tree material colors.
var (
	TrunkColor   = core.Color{R: 0.42, G: 0.27, B: 0.14, A: 1}
	FoliageColor = core.Color{R: 0.95, G: 0.78, B: 0.32, A: 1}
)

// CreateTree builds a lit trunk and two stacked foliage cones, roughly two
// units tall and centred on the origin. The mesh has two parts, "trunk" and
// "foliage", each bound to a 1x1 solid texture.
func CreateTree(segments int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	var b meshBuilder

	b.cylinderSides(0.15, -1.0, -0.2, segments)
	b.endPart("trunk", SolidTextureFromColor("trunk", TrunkColor))

	b.cone(0.85, -0.4, 0.55, segments)
	b.cone(0.6, 0.2, 1.0, segments)
	b.endPart("foliage", SolidTextureFromColor("foliage", FoliageColor))

	return CreateMeshFromData("Tree", core.LayoutPositionNormalTexture, b.vertices, b.indices, b.parts...)
}

// CreateGroundQuad builds an unlit square of the given size in the plane
// y = height, textured with a single solid color.
func CreateGroundQuad(size, height float32, color core.Color) *Mesh {
	s := size / 2
	up := mgl32.Vec3{0, 1, 0}
	var b meshBuilder
	v0 := b.vertex(mgl32.Vec3{-s, height, -s}, up, mgl32.Vec2{0, 0})
	v1 := b.vertex(mgl32.Vec3{s, height, -s}, up, mgl32.Vec2{1, 0})
	v2 := b.vertex(mgl32.Vec3{s, height, s}, up, mgl32.Vec2{1, 1})
	v3 := b.vertex(mgl32.Vec3{-s, height, s}, up, mgl32.Vec2{0, 1})
	b.triangle(v0, v2, v1)
	b.triangle(v2, v0, v3)
	b.endPart("ground", SolidTextureFromColor("ground", color))
	return CreateMeshFromData("Ground", core.LayoutPositionTexture, b.vertices, b.indices, b.parts...)
}

// CreateQuad builds a lit unit quad facing +Z with the given texture.
func CreateQuad(tex *Texture) *Mesh {
	n := mgl32.Vec3{0, 0, 1}
	var b meshBuilder
	v0 := b.vertex(mgl32.Vec3{-0.5, -0.5, 0}, n, mgl32.Vec2{0, 1})
	v1 := b.vertex(mgl32.Vec3{0.5, -0.5, 0}, n, mgl32.Vec2{1, 1})
	v2 := b.vertex(mgl32.Vec3{0.5, 0.5, 0}, n, mgl32.Vec2{1, 0})
	v3 := b.vertex(mgl32.Vec3{-0.5, 0.5, 0}, n, mgl32.Vec2{0, 0})
	b.triangle(v0, v1, v2)
	b.triangle(v2, v3, v0)
	b.endPart("quad", tex)
	return CreateMeshFromData("Quad", core.LayoutPositionNormalTexture, b.vertices, b.indices, b.parts...)
}
