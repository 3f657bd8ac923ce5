package scene

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/core"
)

var ErrInvalidMesh = errors.New("invalid mesh")

// MaxVertices is the largest vertex count a mesh may carry. Index 0xFFFF
// is left free as the primitive-restart value.
const MaxVertices = 0xFFFF

// MeshPart is an index sub-range drawn with one texture bound. Start and
// Count are in indices, not triangles.
type MeshPart struct {
	Name    string
	Start   int
	Count   int
	Texture *Texture // nil samples white
}

// Mesh holds CPU-side vertex/index data as a triangle list.
// GPU upload is managed by the renderer backend.
type Mesh struct {
	Name     string
	Layout   core.VertexLayout
	Vertices []core.Vertex
	Indices  []uint16
	// Parts partition Indices by material. An empty slice draws the whole
	// index range untextured.
	Parts []MeshPart

	// GPUData is set by the renderer backend (e.g. *opengl.GPUMesh).
	// Do not access directly; use the renderer's API.
	GPUData interface{}
}

func CreateMeshFromData(name string, layout core.VertexLayout, vertices []core.Vertex, indices []uint16, parts ...MeshPart) *Mesh {
	return &Mesh{
		Name:     name,
		Layout:   layout,
		Vertices: vertices,
		Indices:  indices,
		Parts:    parts,
	}
}

// DrawParts returns Parts, or a single untextured part spanning every index.
func (m *Mesh) DrawParts() []MeshPart {
	if len(m.Parts) > 0 {
		return m.Parts
	}
	return []MeshPart{{Name: m.Name, Start: 0, Count: len(m.Indices)}}
}

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Validate checks the invariants the renderers rely on.
func (m *Mesh) Validate() error {
	if len(m.Vertices) > MaxVertices {
		return fmt.Errorf("%w: %s: %d vertices exceed 16-bit indexing", ErrInvalidMesh, m.Name, len(m.Vertices))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %s: index count %d is not a multiple of 3", ErrInvalidMesh, m.Name, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("%w: %s: index %d references vertex %d of %d", ErrInvalidMesh, m.Name, i, idx, len(m.Vertices))
		}
	}
	for _, p := range m.Parts {
		if p.Start < 0 || p.Count < 0 || p.Start+p.Count > len(m.Indices) {
			return fmt.Errorf("%w: %s: part %q [%d,+%d) outside %d indices", ErrInvalidMesh, m.Name, p.Name, p.Start, p.Count, len(m.Indices))
		}
		if p.Start%3 != 0 || p.Count%3 != 0 {
			return fmt.Errorf("%w: %s: part %q does not cover whole triangles", ErrInvalidMesh, m.Name, p.Name)
		}
	}
	if m.Layout.Lit() {
		for i, v := range m.Vertices {
			if v.Normal.Len() == 0 {
				return fmt.Errorf("%w: %s: vertex %d has a zero-length normal", ErrInvalidMesh, m.Name, i)
			}
		}
	}
	return nil
}

// Bounds returns the local-space AABB of the vertex positions.
func (m *Mesh) Bounds() (min, max mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return
	}
	min = m.Vertices[0].Position
	max = min
	for _, v := range m.Vertices[1:] {
		for k := 0; k < 3; k++ {
			if v.Position[k] < min[k] {
				min[k] = v.Position[k]
			}
			if v.Position[k] > max[k] {
				max[k] = v.Position[k]
			}
		}
	}
	return min, max
}

// Fit recenters the mesh on the origin and scales it uniformly so the
// largest AABB extent equals size.
func (m *Mesh) Fit(size float32) {
	min, max := m.Bounds()
	ext := max.Sub(min)
	largest := mgl32.Abs(ext[0])
	for _, e := range ext[1:] {
		if e > largest {
			largest = e
		}
	}
	if largest == 0 {
		return
	}
	center := min.Add(max).Mul(0.5)
	s := size / largest
	for i := range m.Vertices {
		m.Vertices[i].Position = m.Vertices[i].Position.Sub(center).Mul(s)
	}
}
