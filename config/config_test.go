package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom-engine/postfx"
	"bloom-engine/shading"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	s, err := cfg.BloomSettings()
	require.NoError(t, err)
	assert.Equal(t, postfx.DefaultSettings(), s)

	l, err := cfg.LightingParams()
	require.NoError(t, err)
	def := shading.DefaultLighting()
	for i := range l.Lights {
		assert.InDelta(t, 1, l.Lights[i].Direction.Len(), 1e-5)
		assert.InDelta(t, def.Lights[i].Intensity, l.Lights[i].Intensity, 1e-6)
	}
	assert.InDelta(t, 0.25, cfg.ClearColor().R, 0.01)
}

const tomlConfig = `
[window]
width = 640
height = 360

[bloom]
preset = "blue"
threshold = 0.25
target_color = "#ffd966"

[lighting]
specular_power = 32.0

[[lighting.lights]]
direction = [0.0, -2.0, 0.0]
color = "#ffffff"
intensity = 1.0

[[lighting.lights]]
direction = [1.0, 0.0, 0.0]
color = "#3366ff"
intensity = 0.25

[toggles]
wireframe = true
`

const yamlConfig = `
window:
  width: 640
  height: 360
bloom:
  preset: blue
  threshold: 0.25
  target_color: "#ffd966"
lighting:
  specular_power: 32
  lights:
    - direction: [0, -2, 0]
      color: "#ffffff"
      intensity: 1
    - direction: [1, 0, 0]
      color: "#3366ff"
      intensity: 0.25
toggles:
  wireframe: true
`

func TestDecodeFormats(t *testing.T) {
	for ext, src := range map[string]string{".toml": tomlConfig, ".yaml": yamlConfig, ".YML": yamlConfig} {
		t.Run(ext, func(t *testing.T) {
			cfg, err := Decode(strings.NewReader(src), ext)
			require.NoError(t, err)

			assert.Equal(t, 640, cfg.Window.Width)
			assert.Equal(t, "Bloom Engine", cfg.Window.Title, "unset keys keep defaults")
			assert.True(t, cfg.Toggles.Wireframe)
			assert.True(t, cfg.Toggles.PostProcess)

			s, err := cfg.BloomSettings()
			require.NoError(t, err)
			blue, _ := postfx.Preset(postfx.PresetBlue)
			assert.Equal(t, blue.BlurAmount, s.BlurAmount, "preset value kept")
			assert.Equal(t, float32(0.25), s.Threshold, "override applied")
			assert.InDelta(t, 1, s.TargetColor.X(), 1e-6)
			assert.InDelta(t, 0.851, s.TargetColor.Y(), 1e-3)

			l, err := cfg.LightingParams()
			require.NoError(t, err)
			assert.InDelta(t, -1, l.Lights[0].Direction.Y(), 1e-6, "directions are normalized")
			assert.Equal(t, float32(32), l.SpecularPower)
			assert.InDelta(t, 0.2, l.Lights[1].Color.R, 1e-6)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"zero threshold", "[bloom]\nthreshold = 0.0\n"},
		{"negative blur", "[bloom]\nblur_amount = -1.0\n"},
		{"zero sensitivity", "[bloom]\ncolor_sensitivity = 0.0\n"},
		{"unknown preset", "[bloom]\npreset = \"moonlight\"\n"},
		{"bad color", "[window]\nclear_color = \"skyblue\"\n"},
		{"zero light direction", "[[lighting.lights]]\ndirection = [0.0, 0.0, 0.0]\ncolor = \"#ffffff\"\nintensity = 1.0\n[[lighting.lights]]\ndirection = [0.0, -1.0, 0.0]\ncolor = \"#ffffff\"\nintensity = 1.0\n"},
		{"unknown key", "[bloom]\nglow = 2.0\n"},
		{"bad window", "[window]\nwidth = 0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.src), ".toml")
			assert.Error(t, err)
		})
	}

	oneLight := "lighting:\n  lights:\n    - direction: [0, -1, 0]\n      color: \"#ffffff\"\n      intensity: 1\n"
	_, err := Decode(strings.NewReader(oneLight), ".yaml")
	assert.ErrorIs(t, err, shading.ErrInvalidLighting)

	_, err = Decode(strings.NewReader("{}"), ".json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode(strings.NewReader("[bloom]\nblur_amount = 0.0\n"), ".toml")
	assert.ErrorIs(t, err, postfx.ErrInvalidSettings)
}

func TestEmptyYAMLKeepsDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""), ".yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, ext := range []string{".toml", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			in := Default()
			blur := float32(5.5)
			in.Bloom.BlurAmount = &blur

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, &in, ext))
			out, err := Decode(&buf, ext)
			require.NoError(t, err)

			s, err := out.BloomSettings()
			require.NoError(t, err)
			assert.Equal(t, float32(5.5), s.BlurAmount)
			assert.Equal(t, in.Lighting.Ambient, out.Lighting.Ambient)
			assert.Equal(t, in.Window, out.Window)
		})
	}
	assert.ErrorIs(t, Encode(&bytes.Buffer{}, &Config{}, ".ini"), ErrUnsupportedFormat)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bloom.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 360, cfg.Window.Height)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	for _, name := range []string{"empty.toml", "empty.yaml"} {
		blank := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(blank, []byte(" \n"), 0o644))
		_, err = Load(blank)
		assert.ErrorIs(t, err, ErrEmptyConfig, name)
	}
}

// replaceFile swaps path's content in one rename so the watcher never reads
// a half-written file.
func replaceFile(t *testing.T, path string, data []byte) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, data, 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.InDelta(t, 1, c.R, 1e-6)
	assert.InDelta(t, 0.502, c.G, 1e-3)
	assert.Equal(t, float32(1), c.A)

	_, err = ParseColor("not-a-color")
	assert.Error(t, err)
}

func TestWatchReloadsValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bloom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c *Config) { reloads <- c })
	}()

	// Empty and invalid files are skipped; only the valid one is delivered.
	// Writes repeat until the watcher has picked one up.
	bad := []byte("bloom:\n  threshold: 0\n")
	good := []byte(strings.Replace(yamlConfig, "width: 640", "width: 800", 1))
	var got *Config
	deadline := time.After(5 * time.Second)
	for got == nil {
		replaceFile(t, path, nil)
		replaceFile(t, path, bad)
		replaceFile(t, path, good)
		select {
		case c := <-reloads:
			got = c
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
	assert.Equal(t, 800, got.Window.Width)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
