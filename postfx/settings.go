// Package postfx holds the bloom math: bright-area extraction, the separable
// Gaussian blur and the additive compositor, evaluated on float images.
//
// Every function here is a pure per-pixel map. Backends either call these
// directly (internal/software) or mirror them in GLSL (internal/opengl).
package postfx

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrInvalidSettings = errors.New("invalid bloom settings")

// Settings is the bloom configuration for one frame.
type Settings struct {
	Intensity        float32    // multiplier applied when compositing
	Threshold        float32    // minimum luminance before a pixel blooms
	BlurAmount       float32    // Gaussian sigma and tap spacing in pixels
	ColorSensitivity float32    // color distance at which similarity reaches 0
	TargetColor      mgl32.Vec3 // RGB in [0,1]
}

const (
	PresetBlue     = "blue"
	PresetSunlight = "sunlight"
)

var presets = map[string]Settings{
	// Makes the sky-blue clear color glow.
	PresetBlue: {
		Intensity:        1.5,
		Threshold:        0.3,
		BlurAmount:       4.0,
		ColorSensitivity: 0.5,
		TargetColor:      mgl32.Vec3{0.25, 0.45, 0.9},
	},
	// Warm highlights on the lit side of the mesh. Blur and intensity are
	// the blue values scaled by 1.2 and 1.3.
	PresetSunlight: {
		Intensity:        1.95,
		Threshold:        0.1,
		BlurAmount:       4.8,
		ColorSensitivity: 0.35,
		TargetColor:      mgl32.Vec3{1.0, 0.8, 0.35},
	},
}

// DefaultSettings returns the sunlight preset.
func DefaultSettings() Settings {
	return presets[PresetSunlight]
}

// Preset looks up a named preset.
func Preset(name string) (Settings, error) {
	s, ok := presets[name]
	if !ok {
		return Settings{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidSettings, name)
	}
	return s, nil
}

// PresetNames lists the known presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BlurAmount bounds. Outside them 2*sigma^2 underflows or overflows float32
// and the kernel weights stop being usable.
const (
	MinBlurAmount = 1e-3
	MaxBlurAmount = 64
)

// Validate enforces the positivity the blur weights and similarity
// division depend on.
func (s Settings) Validate() error {
	positive := []struct {
		name string
		v    float32
	}{
		{"threshold", s.Threshold},
		{"blur amount", s.BlurAmount},
		{"color sensitivity", s.ColorSensitivity},
	}
	for _, p := range positive {
		if !finite(p.v) || p.v <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidSettings, p.name, p.v)
		}
	}
	if s.BlurAmount < MinBlurAmount || s.BlurAmount > MaxBlurAmount {
		return fmt.Errorf("%w: blur amount must be in [%v, %v], got %v", ErrInvalidSettings, MinBlurAmount, MaxBlurAmount, s.BlurAmount)
	}
	if !finite(s.Intensity) || s.Intensity < 0 {
		return fmt.Errorf("%w: intensity must be >= 0, got %v", ErrInvalidSettings, s.Intensity)
	}
	for i, c := range s.TargetColor {
		if !finite(c) || c < 0 || c > 1 {
			return fmt.Errorf("%w: target color channel %d out of [0,1]: %v", ErrInvalidSettings, i, c)
		}
	}
	return nil
}

// ExtractParams is the extractor's view of the settings.
func (s Settings) ExtractParams() ExtractParams {
	return ExtractParams{
		Threshold:   s.Threshold,
		TargetColor: s.TargetColor,
		Sensitivity: s.ColorSensitivity,
	}
}

// BlurParams is the blur stage's view of the settings for one direction.
func (s Settings) BlurParams(dir Direction) BlurParams {
	return BlurParams{Direction: dir, Amount: s.BlurAmount}
}

func finite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}
