package scene

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"bloom-engine/core"
)

// LoadGLTFMesh opens a .glb or .gltf file and merges every triangle
// primitive into one lit Mesh. Each primitive becomes a MeshPart bound to its
// material's base-colour texture, or to a solid texture of the base-colour
// factor when there is none. Node transforms are ignored.
//
// Unreadable textures and non-triangle primitives are skipped with a warning
// on logger (which may be nil).
func LoadGLTFMesh(path string, logger *slog.Logger) (*Mesh, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	dir := filepath.Dir(path)

	// ── 1. Textures ───────────────────────────────────────────────────────────
	texCache := make([]*Texture, len(doc.Textures))
	for i, gt := range doc.Textures {
		if gt.Source == nil || *gt.Source >= len(doc.Images) {
			continue
		}
		img := doc.Images[*gt.Source]

		var tex *Texture
		if img.BufferView != nil {
			// Binary GLB: image data lives in a buffer view
			raw, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
			if err != nil {
				logger.Warn("gltf: image buffer view", "image", *gt.Source, "err", err)
				continue
			}
			name := img.Name
			if name == "" {
				name = fmt.Sprintf("gltf_img_%d", *gt.Source)
			}
			tex, err = decodeImageBytes(name, raw)
			if err != nil {
				logger.Warn("gltf: image decode", "image", *gt.Source, "err", err)
				continue
			}
		} else if img.URI != "" && !img.IsEmbeddedResource() {
			// External file referenced by relative URI
			tex, err = LoadTexture(filepath.Join(dir, img.URI))
			if err != nil {
				logger.Warn("gltf: image load", "image", *gt.Source, "uri", img.URI, "err", err)
				continue
			}
		}
		texCache[i] = tex
	}

	// ── 2. Materials → base-colour texture ───────────────────────────────────
	matTex := make([]*Texture, len(doc.Materials))
	for i, gm := range doc.Materials {
		var tex *Texture
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorTexture != nil {
				idx := pbr.BaseColorTexture.Index
				if idx < len(texCache) {
					tex = texCache[idx]
				}
			}
			if tex == nil {
				cf := pbr.BaseColorFactorOrDefault()
				tex = SolidTextureFromColor(gm.Name, core.Color{
					R: float32(cf[0]), G: float32(cf[1]),
					B: float32(cf[2]), A: float32(cf[3]),
				})
			}
		}
		matTex[i] = tex
	}

	// ── 3. Primitives ─────────────────────────────────────────────────────────
	var b meshBuilder
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				logger.Warn("gltf: skipping non-triangle primitive", "mesh", mi, "primitive", pi, "mode", prim.Mode)
				continue
			}
			if err := appendGLTFPrimitive(&b, doc, prim); err != nil {
				return nil, fmt.Errorf("gltf %q mesh %d prim %d: %w", path, mi, pi, err)
			}
			var tex *Texture
			if prim.Material != nil && *prim.Material < len(matTex) {
				tex = matTex[*prim.Material]
			}
			name := gm.Name
			if name == "" {
				name = fmt.Sprintf("mesh_%d", mi)
			}
			b.endPart(fmt.Sprintf("%s_p%d", name, pi), tex)
		}
	}
	if len(b.indices) == 0 {
		return nil, fmt.Errorf("%w: gltf %q has no triangle geometry", ErrInvalidMesh, path)
	}

	m := CreateMeshFromData(filepath.Base(path), core.LayoutPositionNormalTexture, b.vertices, b.indices, b.parts...)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// appendGLTFPrimitive converts one glTF primitive into the builder's vertex
// and index arrays. Missing normals are rebuilt from the triangles.
func appendGLTFPrimitive(b *meshBuilder, doc *gltf.Document, prim *gltf.Primitive) error {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	base := len(b.vertices)
	if base+len(positions) > MaxVertices {
		return fmt.Errorf("%w: %d vertices exceed 16-bit indexing", ErrInvalidMesh, base+len(positions))
	}

	var normals [][3]float32
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, _ = modeler.ReadNormal(doc, doc.Accessors[idx], nil)
	}
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uvs, _ = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
	}

	for i, p := range positions {
		v := core.Vertex{Position: mgl32.Vec3{p[0], p[1], p[2]}}
		if i < len(normals) {
			v.Normal = mgl32.Vec3(normals[i])
		}
		if i < len(uvs) {
			v.UV = mgl32.Vec2(uvs[i])
		}
		b.vertices = append(b.vertices, v)
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	start := len(b.indices)
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			return fmt.Errorf("%w: index %d out of range", ErrInvalidMesh, idx)
		}
		b.indices = append(b.indices, uint16(base+int(idx)))
	}

	if len(normals) < len(positions) {
		rebuildNormals(b.vertices[base:], b.indices[start:], base)
	}
	return nil
}

// rebuildNormals replaces zero normals with area-weighted face normals.
func rebuildNormals(verts []core.Vertex, indices []uint16, base int) {
	acc := make([]mgl32.Vec3, len(verts))
	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := int(indices[t])-base, int(indices[t+1])-base, int(indices[t+2])-base
		e1 := verts[i1].Position.Sub(verts[i0].Position)
		e2 := verts[i2].Position.Sub(verts[i0].Position)
		n := e1.Cross(e2)
		acc[i0] = acc[i0].Add(n)
		acc[i1] = acc[i1].Add(n)
		acc[i2] = acc[i2].Add(n)
	}
	for i := range verts {
		if verts[i].Normal.Len() != 0 {
			continue
		}
		if acc[i].Len() == 0 {
			verts[i].Normal = mgl32.Vec3{0, 1, 0}
			continue
		}
		verts[i].Normal = acc[i].Normalize()
	}
}
