// Package config loads the renderer settings from TOML or YAML files.
//
// Files are decoded over Default(), so any key left out keeps its default.
// Colors are hex strings such as "#ffd966". Bloom values start from a named
// preset and individual fields override it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"bloom-engine/core"
	"bloom-engine/postfx"
	"bloom-engine/shading"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	// ErrEmptyConfig is returned by Load for a file with no content, which
	// is what a watcher sees while an editor truncates before writing.
	ErrEmptyConfig = errors.New("empty config file")
)

type Config struct {
	Window    WindowConfig    `toml:"window" yaml:"window"`
	Bloom     BloomConfig     `toml:"bloom" yaml:"bloom"`
	Lighting  LightingConfig  `toml:"lighting" yaml:"lighting"`
	Animation AnimationConfig `toml:"animation" yaml:"animation"`
	Toggles   ToggleConfig    `toml:"toggles" yaml:"toggles"`
}

type WindowConfig struct {
	Width      int    `toml:"width" yaml:"width"`
	Height     int    `toml:"height" yaml:"height"`
	Title      string `toml:"title" yaml:"title"`
	VSync      bool   `toml:"vsync" yaml:"vsync"`
	ClearColor string `toml:"clear_color" yaml:"clear_color"`
}

// BloomConfig starts from Preset; each non-nil field replaces the preset
// value.
type BloomConfig struct {
	Preset           string   `toml:"preset" yaml:"preset"`
	Intensity        *float32 `toml:"intensity,omitempty" yaml:"intensity,omitempty"`
	Threshold        *float32 `toml:"threshold,omitempty" yaml:"threshold,omitempty"`
	BlurAmount       *float32 `toml:"blur_amount,omitempty" yaml:"blur_amount,omitempty"`
	ColorSensitivity *float32 `toml:"color_sensitivity,omitempty" yaml:"color_sensitivity,omitempty"`
	TargetColor      string   `toml:"target_color,omitempty" yaml:"target_color,omitempty"`
}

type LightConfig struct {
	Direction [3]float32 `toml:"direction" yaml:"direction"`
	Color     string     `toml:"color" yaml:"color"`
	Intensity float32    `toml:"intensity" yaml:"intensity"`
}

type LightingConfig struct {
	Ambient        string        `toml:"ambient" yaml:"ambient"`
	Lights         []LightConfig `toml:"lights" yaml:"lights"`
	SpecularColor  string        `toml:"specular_color" yaml:"specular_color"`
	SpecularPower  float32       `toml:"specular_power" yaml:"specular_power"`
	CameraPosition [3]float32    `toml:"camera_position" yaml:"camera_position"`
}

type AnimationConfig struct {
	SpinSpeed  float32 `toml:"spin_speed" yaml:"spin_speed"` // radians per second
	Model      string  `toml:"model" yaml:"model"`           // optional .glb/.gltf/.obj replacing the tree
	ModelScale float32 `toml:"model_scale" yaml:"model_scale"`
}

type ToggleConfig struct {
	PostProcess bool `toml:"post_process" yaml:"post_process"`
	Wireframe   bool `toml:"wireframe" yaml:"wireframe"`
}

// Default returns the built-in configuration: a 1280x720 window, the
// sunlight preset and DefaultLighting.
func Default() Config {
	l := shading.DefaultLighting()
	lights := make([]LightConfig, len(l.Lights))
	for i, dl := range l.Lights {
		lights[i] = LightConfig{
			Direction: dl.Direction,
			Color:     hexColor(dl.Color),
			Intensity: dl.Intensity,
		}
	}
	return Config{
		Window: WindowConfig{
			Width:      1280,
			Height:     720,
			Title:      "Bloom Engine",
			VSync:      true,
			ClearColor: "#4073e6", // sky blue
		},
		Bloom: BloomConfig{Preset: postfx.PresetSunlight},
		Lighting: LightingConfig{
			Ambient:        hexColor(l.Ambient),
			Lights:         lights,
			SpecularColor:  hexColor(l.SpecularColor),
			SpecularPower:  l.SpecularPower,
			CameraPosition: l.CameraPosition,
		},
		Animation: AnimationConfig{SpinSpeed: 0.6, ModelScale: 2},
		Toggles:   ToggleConfig{PostProcess: true},
	}
}

// Load reads path, choosing the decoder by extension (.toml, .yaml, .yml),
// and validates the result. A blank file is ErrEmptyConfig rather than
// an all-defaults config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("config %q: %w", path, ErrEmptyConfig)
	}
	cfg, err := Decode(bytes.NewReader(data), filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a config in the format named by ext over Default().
// Unknown keys are rejected.
func Decode(r io.Reader, ext string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Encode writes cfg in the format named by ext.
func Encode(w io.Writer, cfg *Config, ext string) error {
	switch strings.ToLower(ext) {
	case ".toml":
		return toml.NewEncoder(w).Encode(cfg)
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Validate checks everything the renderer would otherwise trip over at
// draw time: bloom positivity, light directions and color syntax.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if _, err := ParseColor(c.Window.ClearColor); err != nil {
		return fmt.Errorf("window.clear_color: %w", err)
	}
	if _, err := c.BloomSettings(); err != nil {
		return err
	}
	if _, err := c.LightingParams(); err != nil {
		return err
	}
	if c.Animation.ModelScale <= 0 {
		return fmt.Errorf("animation.model_scale must be > 0, got %v", c.Animation.ModelScale)
	}
	return nil
}

// BloomSettings resolves the preset and overrides into validated settings.
func (c *Config) BloomSettings() (postfx.Settings, error) {
	b := c.Bloom
	s, err := postfx.Preset(b.Preset)
	if err != nil {
		return postfx.Settings{}, fmt.Errorf("bloom.preset: %w", err)
	}
	if b.Intensity != nil {
		s.Intensity = *b.Intensity
	}
	if b.Threshold != nil {
		s.Threshold = *b.Threshold
	}
	if b.BlurAmount != nil {
		s.BlurAmount = *b.BlurAmount
	}
	if b.ColorSensitivity != nil {
		s.ColorSensitivity = *b.ColorSensitivity
	}
	if b.TargetColor != "" {
		tc, err := ParseColor(b.TargetColor)
		if err != nil {
			return postfx.Settings{}, fmt.Errorf("bloom.target_color: %w", err)
		}
		s.TargetColor = tc.RGB()
	}
	if err := s.Validate(); err != nil {
		return postfx.Settings{}, fmt.Errorf("bloom: %w", err)
	}
	return s, nil
}

// LightingParams converts the lighting section. Exactly two lights are
// required.
func (c *Config) LightingParams() (shading.Lighting, error) {
	lc := c.Lighting
	var l shading.Lighting
	if len(lc.Lights) != shading.LightCount {
		return l, fmt.Errorf("%w: %d lights configured, want %d", shading.ErrInvalidLighting, len(lc.Lights), shading.LightCount)
	}

	var err error
	if l.Ambient, err = ParseColor(lc.Ambient); err != nil {
		return l, fmt.Errorf("lighting.ambient: %w", err)
	}
	if l.SpecularColor, err = ParseColor(lc.SpecularColor); err != nil {
		return l, fmt.Errorf("lighting.specular_color: %w", err)
	}
	for i, lt := range lc.Lights {
		col, err := ParseColor(lt.Color)
		if err != nil {
			return l, fmt.Errorf("lighting.lights[%d].color: %w", i, err)
		}
		l.Lights[i] = shading.DirectionalLight{
			Direction: mgl32.Vec3(lt.Direction),
			Color:     col,
			Intensity: lt.Intensity,
		}
	}
	l.SpecularPower = lc.SpecularPower
	l.CameraPosition = mgl32.Vec3(lc.CameraPosition)

	if err := l.Validate(); err != nil {
		return l, err
	}
	return l.Normalized(), nil
}

// ClearColor returns the parsed window clear color.
func (c *Config) ClearColor() core.Color {
	col, err := ParseColor(c.Window.ClearColor)
	if err != nil {
		return core.ColorBlack
	}
	return col
}

// ParseColor parses "#rrggbb" or "#rgb" into an opaque color.
func ParseColor(s string) (core.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return core.Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	return core.Color{R: float32(c.R), G: float32(c.G), B: float32(c.B), A: 1}, nil
}

func hexColor(c core.Color) string {
	return colorful.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B)}.Clamped().Hex()
}
