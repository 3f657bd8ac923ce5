package renderer

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom-engine/config"
	"bloom-engine/internal/software"
	"bloom-engine/postfx"
	"bloom-engine/scene"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Window.Width = 48
	cfg.Window.Height = 32
	return &cfg
}

func newTestEngine(t *testing.T, cfg *config.Config) (*RenderEngine, *software.Device) {
	t.Helper()
	dev := software.NewDevice(2)
	re, err := NewRenderEngine(Backend{
		Device:  dev,
		Scene:   software.NewSceneRenderer(dev),
		Effects: software.NewEffects(dev),
	}, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(re.Destroy)
	return re, dev
}

func TestRenderEngineRendersBloomFrames(t *testing.T) {
	re, dev := newTestEngine(t, smallConfig())

	res := re.Render()
	require.NoError(t, res.Err)
	assert.True(t, res.PostProcessed, "fallback: %v", res.Fallback)
	assert.Equal(t, 1, dev.PresentCount())
	assert.Equal(t, 48, dev.Presented().Width)

	assert.False(t, re.TogglePostProcess())
	res = re.Render()
	require.NoError(t, res.Err)
	assert.False(t, res.PostProcessed)
	assert.Nil(t, res.Fallback)
	assert.Equal(t, res, re.LastResult())
}

func TestRenderEngineToggles(t *testing.T) {
	re, _ := newTestEngine(t, smallConfig())
	assert.True(t, re.PostProcessEnabled())
	assert.False(t, re.Wireframe())

	assert.True(t, re.ToggleWireframe())
	assert.True(t, re.Wireframe())
	res := re.Render()
	require.NoError(t, res.Err)
	assert.True(t, res.PostProcessed)
}

func TestRenderEngineUsePreset(t *testing.T) {
	re, _ := newTestEngine(t, smallConfig())
	assert.Equal(t, postfx.DefaultSettings(), re.Bloom())

	require.NoError(t, re.UsePreset(postfx.PresetBlue))
	blue, _ := postfx.Preset(postfx.PresetBlue)
	assert.Equal(t, blue, re.Bloom())

	assert.ErrorIs(t, re.UsePreset("moonlight"), postfx.ErrInvalidSettings)
	assert.Equal(t, blue, re.Bloom(), "unknown preset keeps the current settings")
}

func TestRenderEngineAppliesConfigBetweenFrames(t *testing.T) {
	re, _ := newTestEngine(t, smallConfig())

	next := smallConfig()
	next.Bloom.Preset = postfx.PresetBlue
	next.Toggles.Wireframe = true
	require.NoError(t, re.ApplyConfig(next))

	assert.Equal(t, postfx.DefaultSettings(), re.Bloom(), "pending until the next frame")
	assert.False(t, re.Wireframe())

	re.Render()
	blue, _ := postfx.Preset(postfx.PresetBlue)
	assert.Equal(t, blue, re.Bloom())
	assert.True(t, re.Wireframe())

	bad := smallConfig()
	zero := float32(0)
	bad.Bloom.Threshold = &zero
	assert.Error(t, re.ApplyConfig(bad))
	re.Render()
	assert.Equal(t, blue, re.Bloom())
}

func TestRenderEngineResizeBetweenFrames(t *testing.T) {
	re, dev := newTestEngine(t, smallConfig())
	re.Render()

	re.RequestResize(64, 16)
	w, h := re.Size()
	assert.Equal(t, 48, w, "not applied yet")
	assert.Equal(t, 32, h)

	res := re.Render()
	require.NoError(t, res.Err)
	assert.True(t, res.PostProcessed)
	w, h = re.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 16, h)
	assert.Equal(t, 64, dev.Presented().Width)
	assert.InDelta(t, 4, re.Camera.AspectRatio, 1e-6)

	re.RequestResize(0, 0)
	re.Render()
	w, _ = re.Size()
	assert.Equal(t, 64, w, "minimised window keeps the last size")
}

func TestRenderEngineUpdateSpinsModel(t *testing.T) {
	re, _ := newTestEngine(t, smallConfig())
	re.Update(0.5)
	assert.InDelta(t, 0.3, re.Spinner.Angle, 1e-6)
}

func TestNewRenderEngineRejectsInvalidInput(t *testing.T) {
	dev := software.NewDevice(1)
	b := Backend{Device: dev, Scene: software.NewSceneRenderer(dev), Effects: software.NewEffects(dev)}

	cfg := smallConfig()
	cfg.Lighting.Lights = cfg.Lighting.Lights[:1]
	_, err := NewRenderEngine(b, cfg, nil)
	assert.Error(t, err)

	bad := scene.CreateMeshFromData("bad", scene.CreateTree(3).Layout, nil, []uint16{0, 1, 2})
	_, err = NewRenderEngine(b, smallConfig(), bad)
	assert.ErrorIs(t, err, scene.ErrInvalidMesh)
}

func TestLoadModelByExtension(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "tri.OBJ")
	require.NoError(t, os.WriteFile(obj, []byte("v 0 0 0\nv 4 0 0\nv 0 4 0\nf 1 2 3\n"), 0o644))

	m, err := LoadModel(obj, 2)
	require.NoError(t, err)
	min, max := m.Bounds()
	assert.InDelta(t, 2, max.X()-min.X(), 1e-5, "fitted to size")

	_, err = LoadModel(filepath.Join(dir, "tri.stl"), 2)
	assert.Error(t, err)
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	re, _ := newTestEngine(t, smallConfig())
	re.Render()
	assert.Contains(t, buf.String(), "render engine initialized")
	assert.Contains(t, buf.String(), "stage")

	SetLogger(nil)
	assert.False(t, Logger().Enabled(t.Context(), slog.LevelError))
}
