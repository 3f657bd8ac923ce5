package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"bloom-engine/pipeline"
	"bloom-engine/postfx"
)

// ── Shaders ───────────────────────────────────────────────────────────────────

// ppVertSrc is a fullscreen triangle via gl_VertexID (no VBO needed).
const ppVertSrc = `
#version 410 core
out vec2 fragUV;
void main() {
    const vec2 pos[3] = vec2[3](
        vec2(-1.0, -1.0),
        vec2( 3.0, -1.0),
        vec2(-1.0,  3.0)
    );
    fragUV      = pos[gl_VertexID] * 0.5 + 0.5;
    gl_Position = vec4(pos[gl_VertexID], 0.0, 1.0);
}
` + "\x00"

// ppExtractFragSrc mirrors postfx.ExtractPixel.
const ppExtractFragSrc = `
#version 410 core
in vec2 fragUV;
uniform sampler2D source;
uniform float threshold;
uniform vec3  targetColor;
uniform float sensitivity;
out vec4 outColor;
void main() {
    vec4 c = texture(source, fragUV);
    float brightness = max(0.0, dot(c.rgb, vec3(0.299, 0.587, 0.114)) - threshold);
    float similarity = clamp(1.0 - distance(c.rgb, targetColor) / sensitivity, 0.0, 1.0);
    outColor = c * (brightness * similarity);
}
` + "\x00"

// ppBlurFragSrc mirrors postfx.BlurPixel: 15 taps spaced amount texels
// apart, Gaussian weights with sigma = amount, divided by their sum.
const ppBlurFragSrc = `
#version 410 core
in vec2 fragUV;
uniform sampler2D source;
uniform vec2  texelDir;
uniform float amount;
out vec4 outColor;
const int K = 7;
void main() {
    float twoSigmaSq = 2.0 * amount * amount;
    vec4  acc   = vec4(0.0);
    float total = 0.0;
    for (int i = -K; i <= K; i++) {
        float fi = float(i);
        float w  = exp(-fi * fi / twoSigmaSq);
        acc   += texture(source, fragUV + texelDir * fi * amount) * w;
        total += w;
    }
    outColor = acc / total;
}
` + "\x00"

// ppCombineFragSrc mirrors postfx.CombinePixel; no clamping, base alpha.
const ppCombineFragSrc = `
#version 410 core
in vec2 fragUV;
uniform sampler2D baseTex;
uniform sampler2D bloomTex;
uniform float intensity;
out vec4 outColor;
void main() {
    vec4 base  = texture(baseTex, fragUV);
    vec4 bloom = texture(bloomTex, fragUV);
    outColor = vec4(base.rgb + bloom.rgb * intensity, base.a);
}
` + "\x00"

const (
	passExtract = "extract"
	passBlur    = "blur"
	passCombine = "combine"
)

// passSpec names a pass program's fragment source and the uniforms it must
// expose. Samplers are bound to texture units in order.
type passSpec struct {
	name     string
	fragSrc  string
	samplers []string
	uniforms []string
}

var passSpecs = []passSpec{
	{passExtract, ppExtractFragSrc, []string{"source"}, []string{"threshold", "targetColor", "sensitivity"}},
	{passBlur, ppBlurFragSrc, []string{"source"}, []string{"texelDir", "amount"}},
	{passCombine, ppCombineFragSrc, []string{"baseTex", "bloomTex"}, []string{"intensity"}},
}

// ── Effects ───────────────────────────────────────────────────────────────────

// Effects runs the three post-processing programs. A program that failed
// to compile or lacks a uniform is recorded at load time; its pass then
// reports pipeline.ErrStageUnavailable each frame.
type Effects struct {
	dev      *Device
	programs map[string]*program
	missing  map[string]error
}

func NewEffects(dev *Device) *Effects {
	fx := &Effects{
		dev:      dev,
		programs: make(map[string]*program),
		missing:  make(map[string]error),
	}
	for _, spec := range passSpecs {
		fx.load(spec)
	}
	gl.UseProgram(0)
	return fx
}

func (fx *Effects) load(spec passSpec) {
	p, err := loadProgram(spec.name, ppVertSrc, spec.fragSrc, append(append([]string{}, spec.samplers...), spec.uniforms...)...)
	if err != nil {
		fx.missing[spec.name] = err
		fx.dev.logger.Warn("post-processing pass unavailable", "pass", spec.name, "err", err)
		return
	}
	gl.UseProgram(p.id)
	for unit, s := range spec.samplers {
		gl.Uniform1i(p.loc(s), int32(unit))
	}
	fx.programs[spec.name] = p
}

// Available reports whether every pass loaded.
func (fx *Effects) Available() bool {
	return len(fx.missing) == 0
}

func (fx *Effects) Extract(src pipeline.Target, p postfx.ExtractParams) error {
	prog, err := fx.begin(passExtract, src)
	if err != nil {
		return err
	}
	gl.Uniform1f(prog.loc("threshold"), p.Threshold)
	gl.Uniform3f(prog.loc("targetColor"), p.TargetColor.X(), p.TargetColor.Y(), p.TargetColor.Z())
	gl.Uniform1f(prog.loc("sensitivity"), p.Sensitivity)
	return fx.draw(passExtract)
}

func (fx *Effects) Blur(src pipeline.Target, p postfx.BlurParams) error {
	prog, err := fx.begin(passBlur, src)
	if err != nil {
		return err
	}
	desc := src.Desc()
	dir := p.Direction.Vector()
	gl.Uniform2f(prog.loc("texelDir"), dir.X()/float32(desc.Width), dir.Y()/float32(desc.Height))
	gl.Uniform1f(prog.loc("amount"), p.Amount)
	return fx.draw(passBlur)
}

func (fx *Effects) Combine(base, bloom pipeline.Target, intensity float32) error {
	prog, err := fx.begin(passCombine, base, bloom)
	if err != nil {
		return err
	}
	gl.Uniform1f(prog.loc("intensity"), intensity)
	return fx.draw(passCombine)
}

// begin selects the pass program and binds srcs to texture units in order.
// A source may not be the bound target.
func (fx *Effects) begin(pass string, srcs ...pipeline.Target) (*program, error) {
	if err, ok := fx.missing[pass]; ok {
		return nil, err
	}
	prog := fx.programs[pass]
	for unit, s := range srcs {
		t, err := asTarget(s)
		if err != nil {
			return nil, fmt.Errorf("%s input: %w", pass, err)
		}
		if t == fx.dev.bound {
			return nil, fmt.Errorf("%w: %s reads the %s target it writes", pipeline.ErrInvalidPipeline, pass, t.desc.Slot)
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_2D, t.ColorTex)
	}
	gl.UseProgram(prog.id)
	return prog, nil
}

func (fx *Effects) draw(pass string) error {
	gl.Disable(gl.DEPTH_TEST)
	gl.BindVertexArray(fx.dev.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
	gl.ActiveTexture(gl.TEXTURE0)
	return glError(pass)
}

// Destroy deletes the pass programs.
func (fx *Effects) Destroy() {
	for name, p := range fx.programs {
		p.delete()
		delete(fx.programs, name)
	}
}
