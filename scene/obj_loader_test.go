package scene

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom-engine/core"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const quadOBJ = `# two materials
mtllib mats.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vn 0 0 1
g body
usemtl red
f 1/1/1 2/2/1 3/3/1 4/3/1
usemtl missing
f -4 -2 -1
`

func TestLoadOBJMesh(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mats.mtl", "newmtl red\nKd 1 0 0\nd 0.5\n")
	m, err := LoadOBJMesh(writeFile(t, dir, "quad.obj", quadOBJ), nil)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, "quad.obj", m.Name)
	assert.Equal(t, core.LayoutPositionNormalTexture, m.Layout)
	assert.Len(t, m.Vertices, 7)
	assert.Equal(t, 3, m.TriangleCount())

	require.Len(t, m.Parts, 2)
	assert.Equal(t, "body/red", m.Parts[0].Name)
	assert.Equal(t, 0, m.Parts[0].Start)
	assert.Equal(t, 6, m.Parts[0].Count)
	assert.Equal(t, []byte{255, 0, 0, 128}, m.Parts[0].Texture.Pixels)

	assert.Equal(t, "body/missing", m.Parts[1].Name)
	assert.Equal(t, 6, m.Parts[1].Start)
	assert.Equal(t, []byte{204, 204, 204, 255}, m.Parts[1].Texture.Pixels)

	// v is flipped
	assert.InDelta(t, 1, m.Vertices[0].UV.Y(), 1e-6)
	assert.InDelta(t, 0, m.Vertices[2].UV.Y(), 1e-6)

	// the second face had no normals; they are rebuilt from its winding
	for _, v := range m.Vertices[4:] {
		assert.InDelta(t, 1, v.Normal.Z(), 1e-6)
	}
}

func TestLoadOBJMeshDiffuseMap(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	f, err := os.Create(filepath.Join(dir, "leaf.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	writeFile(t, dir, "mats.mtl", strings.Join([]string{
		"newmtl leaf", "Kd 0 1 0", "map_Kd leaf.png",
		"newmtl bark", "Kd 0 0 1", "map_Kd gone.png",
	}, "\n"))
	obj := "mtllib mats.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl leaf\nf 1 2 3\nusemtl bark\nf 1 3 2\n"

	m, err := LoadOBJMesh(writeFile(t, dir, "leaf.obj", obj), nil)
	require.NoError(t, err)
	require.Len(t, m.Parts, 2)
	assert.Equal(t, []byte{10, 20, 30, 255}, m.Parts[0].Texture.Pixels)
	assert.Equal(t, []byte{0, 0, 255, 255}, m.Parts[1].Texture.Pixels, "unreadable map falls back to Kd")
}

func TestLoadOBJMeshErrors(t *testing.T) {
	tests := []struct {
		name string
		obj  string
	}{
		{"position out of range", "v 0 0 0\nv 1 0 0\nf 1 2 9\n"},
		{"degenerate face", "v 0 0 0\nv 1 0 0\nf 1 2\n"},
		{"bad number", "v 0 zero 0\n"},
		{"no faces", "v 0 0 0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadOBJMesh(writeFile(t, t.TempDir(), "bad.obj", tc.obj), nil)
			assert.Error(t, err)
		})
	}

	_, err := LoadOBJMesh(writeFile(t, t.TempDir(), "empty.obj", "v 0 0 0\n"), nil)
	assert.ErrorIs(t, err, ErrInvalidMesh)

	_, err = LoadOBJMesh(filepath.Join(t.TempDir(), "nope.obj"), nil)
	assert.Error(t, err)
}

func TestObjIndex(t *testing.T) {
	i, ok := objIndex("-1", 4)
	assert.True(t, ok)
	assert.Equal(t, 3, i)

	i, ok = objIndex("2", 4)
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	for _, s := range []string{"", "0", "5", "-5", "x"} {
		_, ok = objIndex(s, 4)
		assert.False(t, ok, s)
	}
}
