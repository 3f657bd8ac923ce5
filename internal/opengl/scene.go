package opengl

import (
	"fmt"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/core"
	"bloom-engine/pipeline"
	"bloom-engine/scene"
	"bloom-engine/shading"
)

// ── Shaders ───────────────────────────────────────────────────────────────────

const sceneVertSrc = `
#version 410 core
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inNormal;
layout(location = 2) in vec2 inUV;

uniform mat4 mvp;
uniform mat4 model;
uniform mat3 normalMatrix;

out vec3 fragWorldPos;
out vec3 fragNormal;
out vec2 fragUV;

void main() {
    fragWorldPos = (model * vec4(inPosition, 1.0)).xyz;
    fragNormal   = normalMatrix * inNormal;
    fragUV       = inUV;
    gl_Position  = mvp * vec4(inPosition, 1.0);
}
` + "\x00"

// litFragSrc mirrors shading.Shade.
const litFragSrc = `
#version 410 core
in vec3 fragWorldPos;
in vec3 fragNormal;
in vec2 fragUV;

uniform sampler2D baseTex;
uniform vec3  ambient;
uniform vec3  lightDir[2];
uniform vec3  lightColor[2];
uniform float lightIntensity[2];
uniform vec3  specularColor;
uniform float specularPower;
uniform vec3  cameraPos;

out vec4 outColor;

void main() {
    vec4 base = texture(baseTex, fragUV);
    if (dot(fragNormal, fragNormal) == 0.0) {
        outColor = base;
        return;
    }
    vec3 n = normalize(fragNormal);
    vec3 toCam = cameraPos - fragWorldPos;
    vec3 viewDir = dot(toCam, toCam) > 0.0 ? normalize(toCam) : toCam;

    vec3 light = ambient;
    vec3 specular = vec3(0.0);
    for (int i = 0; i < 2; i++) {
        float diffuse = max(0.0, dot(n, -lightDir[i]));
        light += lightColor[i] * diffuse * lightIntensity[i];

        vec3 r = reflect(lightDir[i], n);
        float s = specularPower == 0.0 ? 1.0 : pow(max(0.0, dot(r, viewDir)), specularPower);
        specular += specularColor * s * lightIntensity[i];
    }
    outColor = vec4(base.rgb * light + specular, base.a);
}
` + "\x00"

const unlitVertSrc = `
#version 410 core
layout(location = 0) in vec3 inPosition;
layout(location = 2) in vec2 inUV;

uniform mat4 mvp;

out vec2 fragUV;

void main() {
    fragUV      = inUV;
    gl_Position = mvp * vec4(inPosition, 1.0);
}
` + "\x00"

const unlitFragSrc = `
#version 410 core
in vec2 fragUV;
uniform sampler2D baseTex;
out vec4 outColor;
void main() {
    outColor = texture(baseTex, fragUV);
}
` + "\x00"

var (
	litUniforms = []string{
		"mvp", "model", "normalMatrix", "baseTex", "ambient",
		"lightDir[0]", "lightColor[0]", "lightIntensity[0]",
		"specularColor", "specularPower", "cameraPos",
	}
	unlitUniforms = []string{"mvp", "baseTex"}
)

// ── SceneRenderer ─────────────────────────────────────────────────────────────

type gpuMesh struct {
	VAO, VBO, EBO uint32
}

// SceneRenderer draws frame objects with the lit or unlit program chosen
// by each mesh's vertex layout.
type SceneRenderer struct {
	dev      *Device
	lit      *program
	unlit    *program
	meshes   map[*scene.Mesh]*gpuMesh
	invalid  map[*scene.Mesh]error
	textures []*scene.Texture // uploaded by this renderer
	white    *scene.Texture
}

// NewSceneRenderer compiles the scene programs. Unlike the post-processing
// programs they are required, so a failure is returned.
func NewSceneRenderer(dev *Device) (*SceneRenderer, error) {
	lit, err := loadProgram("lit", sceneVertSrc, litFragSrc, litUniforms...)
	if err != nil {
		return nil, err
	}
	unlit, err := loadProgram("unlit", unlitVertSrc, unlitFragSrc, unlitUniforms...)
	if err != nil {
		lit.delete()
		return nil, err
	}
	for _, p := range []*program{lit, unlit} {
		gl.UseProgram(p.id)
		gl.Uniform1i(p.loc("baseTex"), 0)
	}
	gl.UseProgram(0)

	return &SceneRenderer{
		dev:     dev,
		lit:     lit,
		unlit:   unlit,
		meshes:  make(map[*scene.Mesh]*gpuMesh),
		invalid: make(map[*scene.Mesh]error),
		white:   scene.NewSolidTexture("white", 255, 255, 255, 255),
	}, nil
}

// DrawScene renders every object into the bound target with depth testing.
func (r *SceneRenderer) DrawScene(f *pipeline.Frame) error {
	l := f.Lighting.Normalized()
	r.setLighting(&l)

	gl.Enable(gl.DEPTH_TEST)
	if f.Wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	}
	defer func() {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
		gl.Disable(gl.DEPTH_TEST)
		gl.BindVertexArray(0)
	}()

	vp := f.ViewProjection()
	for _, obj := range f.Objects {
		if err := r.drawObject(obj, vp); err != nil {
			return err
		}
	}
	return glError("draw scene")
}

func (r *SceneRenderer) drawObject(obj pipeline.Object, vp mgl32.Mat4) error {
	gpu, err := r.ensureUploaded(obj.Mesh)
	if err != nil {
		return err
	}

	mvp := vp.Mul4(obj.World)
	prog := r.unlit
	if obj.Mesh.Layout.Lit() {
		prog = r.lit
	}
	gl.UseProgram(prog.id)
	gl.UniformMatrix4fv(prog.loc("mvp"), 1, false, &mvp[0])
	if prog == r.lit {
		normalMat := obj.World.Mat3().Inv().Transpose()
		gl.UniformMatrix4fv(prog.loc("model"), 1, false, &obj.World[0])
		gl.UniformMatrix3fv(prog.loc("normalMatrix"), 1, false, &normalMat[0])
	}

	gl.BindVertexArray(gpu.VAO)
	gl.ActiveTexture(gl.TEXTURE0)
	for _, part := range obj.Mesh.DrawParts() {
		id, err := r.textureID(part.Texture)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", obj.Mesh.Name, part.Name, err)
		}
		gl.BindTexture(gl.TEXTURE_2D, id)
		gl.DrawElements(gl.TRIANGLES, int32(part.Count), gl.UNSIGNED_SHORT, gl.PtrOffset(part.Start*2))
	}
	return nil
}

func (r *SceneRenderer) setLighting(l *shading.Lighting) {
	var dirs, colors [shading.LightCount]mgl32.Vec3
	var intensities [shading.LightCount]float32
	for i, dl := range l.Lights {
		dirs[i] = dl.Direction
		colors[i] = dl.Color.RGB()
		intensities[i] = dl.Intensity
	}
	ambient, spec := l.Ambient.RGB(), l.SpecularColor.RGB()

	p := r.lit
	gl.UseProgram(p.id)
	gl.Uniform3fv(p.loc("ambient"), 1, &ambient[0])
	gl.Uniform3fv(p.loc("lightDir[0]"), shading.LightCount, &dirs[0][0])
	gl.Uniform3fv(p.loc("lightColor[0]"), shading.LightCount, &colors[0][0])
	gl.Uniform1fv(p.loc("lightIntensity[0]"), shading.LightCount, &intensities[0])
	gl.Uniform3fv(p.loc("specularColor"), 1, &spec[0])
	gl.Uniform1f(p.loc("specularPower"), l.SpecularPower)
	gl.Uniform3fv(p.loc("cameraPos"), 1, &l.CameraPosition[0])
}

func (r *SceneRenderer) textureID(tex *scene.Texture) (uint32, error) {
	if tex == nil {
		tex = r.white
	}
	if tex.GLID == 0 {
		if err := UploadTexture(tex); err != nil {
			return 0, err
		}
		r.textures = append(r.textures, tex)
	}
	return tex.GLID, nil
}

// ensureUploaded validates the mesh once and uploads its vertex and 16-bit
// index buffers.
func (r *SceneRenderer) ensureUploaded(mesh *scene.Mesh) (*gpuMesh, error) {
	if mesh == nil {
		return nil, fmt.Errorf("%w: nil mesh", scene.ErrInvalidMesh)
	}
	if gpu, ok := r.meshes[mesh]; ok {
		return gpu, nil
	}
	if err, ok := r.invalid[mesh]; ok {
		return nil, err
	}
	if err := mesh.Validate(); err != nil {
		r.invalid[mesh] = err
		return nil, err
	}

	stride := int32(unsafe.Sizeof(core.Vertex{}))
	gpu := &gpuMesh{}

	gl.GenVertexArrays(1, &gpu.VAO)
	gl.GenBuffers(1, &gpu.VBO)
	gl.BindVertexArray(gpu.VAO)

	gl.BindBuffer(gl.ARRAY_BUFFER, gpu.VBO)
	if len(mesh.Vertices) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Vertices)*int(stride), gl.Ptr(mesh.Vertices), gl.STATIC_DRAW)
	}

	var v core.Vertex
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, gl.PtrOffset(int(unsafe.Offsetof(v.Position))))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, gl.PtrOffset(int(unsafe.Offsetof(v.Normal))))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, stride, gl.PtrOffset(int(unsafe.Offsetof(v.UV))))

	gl.GenBuffers(1, &gpu.EBO)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gpu.EBO)
	if len(mesh.Indices) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*2, gl.Ptr(mesh.Indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)

	r.meshes[mesh] = gpu
	mesh.GPUData = gpu
	return gpu, nil
}

// ReleaseMesh frees the GPU buffers of one mesh.
func (r *SceneRenderer) ReleaseMesh(mesh *scene.Mesh) {
	gpu, ok := r.meshes[mesh]
	if !ok {
		return
	}
	gl.DeleteVertexArrays(1, &gpu.VAO)
	gl.DeleteBuffers(1, &gpu.VBO)
	gl.DeleteBuffers(1, &gpu.EBO)
	delete(r.meshes, mesh)
	mesh.GPUData = nil
}

// Destroy frees programs, meshes and the textures this renderer uploaded.
func (r *SceneRenderer) Destroy() {
	for mesh := range r.meshes {
		r.ReleaseMesh(mesh)
	}
	for _, tex := range r.textures {
		DeleteTexture(tex)
	}
	r.textures = nil
	r.lit.delete()
	r.unlit.delete()
}
