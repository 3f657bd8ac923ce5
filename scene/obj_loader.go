package scene

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/core"
)

// objDefaultColor is used for faces without a material.
var objDefaultColor = core.Color{R: 0.8, G: 0.8, B: 0.8, A: 1}

// LoadOBJMesh parses a Wavefront .obj file into one lit Mesh. Every run of
// faces sharing a group and material becomes a MeshPart. Materials come
// from the referenced .mtl files: map_Kd when it loads, otherwise a solid
// texture of Kd with d as alpha. Missing normals are rebuilt from the faces
// and texture rows are flipped so v=0 is the top of the image.
func LoadOBJMesh(path string, logger *slog.Logger) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer f.Close()
	return parseOBJ(f, filepath.Base(path), filepath.Dir(path), logger)
}

type objParser struct {
	b         meshBuilder
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	uvs       []mgl32.Vec2
	vertexMap map[string]uint16 // "v/vt/vn" -> vertex index

	materials map[string]*Texture
	group     string
	material  string
	fallback  *Texture
}

func parseOBJ(r io.Reader, name, dir string, logger *slog.Logger) (*Mesh, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &objParser{
		vertexMap: make(map[string]uint16),
		materials: make(map[string]*Texture),
		group:     "default",
		fallback:  SolidTextureFromColor("obj_default", objDefaultColor),
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "v":
			v, err := parseFloats(parts[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
			}
			p.positions = append(p.positions, mgl32.Vec3{v[0], v[1], v[2]})
		case "vn":
			v, err := parseFloats(parts[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
			}
			p.normals = append(p.normals, mgl32.Vec3{v[0], v[1], v[2]})
		case "vt":
			v, err := parseFloats(parts[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
			}
			p.uvs = append(p.uvs, mgl32.Vec2{v[0], 1 - v[1]})
		case "f":
			if err := p.face(parts[1:]); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
			}
		case "o", "g":
			p.flush()
			p.group = "unnamed"
			if len(parts) > 1 {
				p.group = parts[1]
			}
		case "usemtl":
			p.flush()
			if len(parts) > 1 {
				p.material = parts[1]
			}
		case "mtllib":
			for _, lib := range parts[1:] {
				mtlPath := filepath.Join(dir, lib)
				mtls, err := loadMTL(mtlPath, logger)
				if err != nil {
					logger.Warn("obj: material library", "path", mtlPath, "err", err)
					continue
				}
				for k, v := range mtls {
					p.materials[k] = v
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read OBJ %s: %w", name, err)
	}
	p.flush()

	if len(p.b.indices) == 0 {
		return nil, fmt.Errorf("%w: %s: no faces", ErrInvalidMesh, name)
	}
	rebuildNormals(p.b.vertices, p.b.indices, 0)

	mesh := CreateMeshFromData(name, core.LayoutPositionNormalTexture, p.b.vertices, p.b.indices, p.b.parts...)
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// face adds a polygon with fan triangulation.
func (p *objParser) face(specs []string) error {
	if len(specs) < 3 {
		return fmt.Errorf("face with %d vertices", len(specs))
	}
	idx := make([]uint16, 0, len(specs))
	for _, spec := range specs {
		if i, ok := p.vertexMap[spec]; ok {
			idx = append(idx, i)
			continue
		}
		v, err := p.faceVertex(spec)
		if err != nil {
			return err
		}
		if len(p.b.vertices) >= MaxVertices {
			return fmt.Errorf("%w: more than %d vertices", ErrInvalidMesh, MaxVertices)
		}
		i := p.b.vertex(v.Position, v.Normal, v.UV)
		p.vertexMap[spec] = i
		idx = append(idx, i)
	}
	for i := 2; i < len(idx); i++ {
		p.b.triangle(idx[0], idx[i-1], idx[i])
	}
	return nil
}

// faceVertex resolves a "v/vt/vn" spec. Negative indices count from the
// end. The position is required; texture and normal references that do not
// resolve are left zero.
func (p *objParser) faceVertex(spec string) (core.Vertex, error) {
	var v core.Vertex
	parts := strings.Split(spec, "/")

	i, ok := objIndex(parts[0], len(p.positions))
	if !ok {
		return v, fmt.Errorf("face vertex %q: bad position index", spec)
	}
	v.Position = p.positions[i]

	if len(parts) >= 2 {
		if i, ok := objIndex(parts[1], len(p.uvs)); ok {
			v.UV = p.uvs[i]
		}
	}
	if len(parts) >= 3 {
		if i, ok := objIndex(parts[2], len(p.normals)); ok {
			v.Normal = p.normals[i]
		}
	}
	return v, nil
}

func objIndex(s string, n int) (int, bool) {
	if s == "" {
		return 0, false
	}
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	if idx < 0 {
		idx = n + idx + 1
	}
	if idx < 1 || idx > n {
		return 0, false
	}
	return idx - 1, true
}

// flush closes the part for the current group and material.
func (p *objParser) flush() {
	if len(p.b.indices) == p.b.partStart {
		return
	}
	tex, ok := p.materials[p.material]
	if !ok {
		tex = p.fallback
	}
	name := p.group
	if p.material != "" {
		name += "/" + p.material
	}
	p.b.endPart(name, tex)
}

// loadMTL reads a .mtl file and returns one texture per material.
func loadMTL(path string, logger *slog.Logger) (map[string]*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type mtl struct {
		diffuse core.Color
		mapKd   string
	}
	var order []string
	defs := make(map[string]*mtl)
	var current *mtl

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "newmtl":
			if len(parts) > 1 {
				current = &mtl{diffuse: objDefaultColor}
				defs[parts[1]] = current
				order = append(order, parts[1])
			}
		case "Kd":
			if current != nil {
				if c, err := parseFloats(parts[1:], 3); err == nil {
					current.diffuse.R, current.diffuse.G, current.diffuse.B = c[0], c[1], c[2]
				}
			}
		case "d", "Tr":
			if current != nil {
				if d, err := parseFloats(parts[1:], 1); err == nil {
					if parts[0] == "Tr" {
						d[0] = 1 - d[0] // Tr is inverse of d
					}
					current.diffuse.A = d[0]
				}
			}
		case "map_Kd":
			if current != nil && len(parts) > 1 {
				current.mapKd = parts[len(parts)-1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]*Texture, len(defs))
	for _, name := range order {
		def := defs[name]
		if def.mapKd != "" {
			tex, err := LoadTexture(filepath.Join(filepath.Dir(path), def.mapKd))
			if err == nil {
				out[name] = tex
				continue
			}
			logger.Warn("obj: diffuse map", "material", name, "err", err)
		}
		out[name] = SolidTextureFromColor(name, def.diffuse)
	}
	return out, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
