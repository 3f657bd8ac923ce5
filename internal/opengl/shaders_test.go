package opengl

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"bloom-engine/postfx"
)

// declaredUniforms lists the uniform names a GLSL source declares.
func declaredUniforms(src string) map[string]bool {
	re := regexp.MustCompile(`uniform\s+\w+\s+(\w+)(\[\d+\])?\s*;`)
	out := map[string]bool{}
	for _, m := range re.FindAllStringSubmatch(src, -1) {
		name := m[1]
		if m[2] != "" {
			name += "[0]"
		}
		out[name] = true
	}
	return out
}

func TestShaderSourcesAreTerminated(t *testing.T) {
	for name, src := range map[string]string{
		"scene.vert":   sceneVertSrc,
		"lit.frag":     litFragSrc,
		"unlit.vert":   unlitVertSrc,
		"unlit.frag":   unlitFragSrc,
		"pp.vert":      ppVertSrc,
		"extract.frag": ppExtractFragSrc,
		"blur.frag":    ppBlurFragSrc,
		"combine.frag": ppCombineFragSrc,
	} {
		assert.True(t, strings.HasSuffix(src, "\x00"), name)
		assert.Contains(t, src, "#version 410 core", name)
	}
}

func TestRequiredUniformsAreDeclared(t *testing.T) {
	lit := declaredUniforms(sceneVertSrc + litFragSrc)
	for _, u := range litUniforms {
		assert.True(t, lit[u], "lit program uniform %q", u)
	}
	assert.Len(t, litUniforms, len(lit), "every lit uniform is validated at load")

	unlit := declaredUniforms(unlitVertSrc + unlitFragSrc)
	assert.ElementsMatch(t, unlitUniforms, keys(unlit))

	for _, spec := range passSpecs {
		declared := declaredUniforms(spec.fragSrc)
		want := append(append([]string{}, spec.samplers...), spec.uniforms...)
		assert.ElementsMatch(t, want, keys(declared), spec.name)
	}
}

func TestLitShaderGuardsZeroSpecularPower(t *testing.T) {
	// pow(0, 0) is undefined in GLSL; the shader must not depend on it.
	assert.Contains(t, litFragSrc, "specularPower == 0.0 ? 1.0 : pow(")
}

func TestBlurShaderMatchesKernelRadius(t *testing.T) {
	assert.Contains(t, ppBlurFragSrc, fmt.Sprintf("const int K = %d;", postfx.KernelRadius))
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
