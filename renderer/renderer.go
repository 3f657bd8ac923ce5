package renderer

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/config"
	"bloom-engine/core"
	"bloom-engine/pipeline"
	"bloom-engine/postfx"
	"bloom-engine/scene"
	"bloom-engine/shading"
)

// GroundColor is the flat color of the unlit ground under the model.
var GroundColor = core.Color{R: 0.22, G: 0.4, B: 0.18, A: 1}

const (
	groundSize   = 12
	groundHeight = -1 // the tree's trunk starts here
	treeSegments = 24
)

// Backend bundles the device-specific halves of the bloom pipeline.
type Backend struct {
	Device  pipeline.Device
	Scene   pipeline.SceneRenderer
	Effects pipeline.Effects
}

// RenderEngine drives the bloom pipeline for a spinning model over a ground
// plane. Mutators may be called from any goroutine; resizes and config
// reloads only take effect at the start of the next Render.
type RenderEngine struct {
	Camera  *scene.Camera
	Spinner *scene.Spinner

	orch   *pipeline.Orchestrator
	model  *scene.Mesh
	ground *scene.Mesh

	mu          sync.Mutex
	lighting    shading.Lighting
	bloom       postfx.Settings
	clearColor  core.Color
	postProcess bool
	wireframe   bool

	pendingConfig *config.Config
	pendingWidth  int
	pendingHeight int
	resizePending bool

	last pipeline.FrameResult
}

// NewRenderEngine builds the bloom pipeline on b and sizes it from
// cfg.Window. A nil cfg means config.Default(); a nil model means the
// procedural tree.
func NewRenderEngine(b Backend, cfg *config.Config, model *scene.Mesh) (*RenderEngine, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if model == nil {
		model = scene.CreateTree(treeSegments)
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	pipe, err := pipeline.NewBloomPipeline(b.Scene, b.Effects)
	if err != nil {
		return nil, err
	}
	w, h := cfg.Window.Width, cfg.Window.Height
	orch, err := pipeline.NewOrchestrator(b.Device, pipe, b.Scene, w, h, pipeline.Options{Logger: Logger()})
	if err != nil {
		return nil, fmt.Errorf("failed to create bloom pipeline: %w", err)
	}

	re := &RenderEngine{
		Camera:  scene.NewCamera(45, float32(w)/float32(h), 0.1, 100),
		Spinner: scene.NewSpinner(cfg.Animation.SpinSpeed),
		orch:    orch,
		model:   model,
		ground:  scene.CreateGroundQuad(groundSize, groundHeight, GroundColor),
	}
	if err := re.apply(cfg); err != nil {
		orch.Close()
		return nil, err
	}
	Logger().Info("render engine initialized", "width", w, "height", h, "model", model.Name)
	return re, nil
}

// LoadModel loads a glTF/GLB or Wavefront OBJ mesh, chosen by extension,
// and fits it to size world units.
func LoadModel(path string, size float32) (*scene.Mesh, error) {
	var (
		m   *scene.Mesh
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		m, err = scene.LoadGLTFMesh(path, Logger())
	case ".obj":
		m, err = scene.LoadOBJMesh(path, Logger())
	default:
		return nil, fmt.Errorf("model %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	m.Fit(size)
	return m, nil
}

// apply copies a validated config into the live parameters. Caller holds mu
// or owns re exclusively.
func (re *RenderEngine) apply(cfg *config.Config) error {
	bloom, err := cfg.BloomSettings()
	if err != nil {
		return err
	}
	lighting, err := cfg.LightingParams()
	if err != nil {
		return err
	}
	re.bloom = bloom
	re.lighting = lighting
	re.clearColor = cfg.ClearColor()
	re.postProcess = cfg.Toggles.PostProcess
	re.wireframe = cfg.Toggles.Wireframe
	re.Spinner.Speed = cfg.Animation.SpinSpeed
	re.Camera.Position = lighting.CameraPosition
	return nil
}

// ApplyConfig validates cfg and queues it for the next frame. The window
// size in cfg is ignored; resizes come from RequestResize.
func (re *RenderEngine) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	re.mu.Lock()
	re.pendingConfig = cfg
	re.mu.Unlock()
	return nil
}

// RequestResize records a new framebuffer size. Zero or negative sizes, as
// reported for a minimised window, are ignored.
func (re *RenderEngine) RequestResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	re.mu.Lock()
	re.pendingWidth, re.pendingHeight = width, height
	re.resizePending = true
	re.mu.Unlock()
}

// Update advances the animation by dt seconds.
func (re *RenderEngine) Update(dt float32) {
	re.mu.Lock()
	re.Spinner.Update(dt)
	re.mu.Unlock()
}

// TogglePostProcess flips bloom on or off and returns the new state.
func (re *RenderEngine) TogglePostProcess() bool {
	re.mu.Lock()
	defer re.mu.Unlock()
	re.postProcess = !re.postProcess
	return re.postProcess
}

// ToggleWireframe flips wireframe drawing and returns the new state.
func (re *RenderEngine) ToggleWireframe() bool {
	re.mu.Lock()
	defer re.mu.Unlock()
	re.wireframe = !re.wireframe
	return re.wireframe
}

// UsePreset switches the bloom settings to a named preset. An unknown name
// leaves the current settings untouched.
func (re *RenderEngine) UsePreset(name string) error {
	s, err := postfx.Preset(name)
	if err != nil {
		return err
	}
	re.mu.Lock()
	re.bloom = s
	re.mu.Unlock()
	return nil
}

func (re *RenderEngine) PostProcessEnabled() bool {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.postProcess
}

func (re *RenderEngine) Wireframe() bool {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.wireframe
}

func (re *RenderEngine) Bloom() postfx.Settings {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.bloom
}

func (re *RenderEngine) Lighting() shading.Lighting {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.lighting
}

// Size returns the current render target size.
func (re *RenderEngine) Size() (width, height int) {
	return re.orch.Targets().Size()
}

// LastResult returns the outcome of the most recent Render.
func (re *RenderEngine) LastResult() pipeline.FrameResult {
	return re.last
}

// Render applies pending resizes and config, then renders and presents one
// frame.
func (re *RenderEngine) Render() pipeline.FrameResult {
	f := re.beginFrame()
	re.last = re.orch.RenderFrame(f)
	return re.last
}

// beginFrame applies pending changes and snapshots the parameters into an
// immutable Frame.
func (re *RenderEngine) beginFrame() *pipeline.Frame {
	re.mu.Lock()
	defer re.mu.Unlock()

	if re.resizePending {
		re.resizePending = false
		re.orch.Resize(re.pendingWidth, re.pendingHeight)
		re.Camera.UpdateAspectRatio(float32(re.pendingWidth), float32(re.pendingHeight))
	}
	if cfg := re.pendingConfig; cfg != nil {
		re.pendingConfig = nil
		if err := re.apply(cfg); err != nil {
			Logger().Warn("config not applied", "err", err)
		} else {
			Logger().Info("config applied", "preset", cfg.Bloom.Preset)
		}
	}

	lighting := re.lighting
	lighting.CameraPosition = re.Camera.Position
	return &pipeline.Frame{
		Objects: []pipeline.Object{
			{Mesh: re.model, World: re.Spinner.World()},
			{Mesh: re.ground, World: mgl32.Ident4()},
		},
		View:        re.Camera.GetViewMatrix(),
		Projection:  re.Camera.GetProjectionMatrix(),
		Lighting:    lighting,
		Bloom:       re.bloom,
		ClearColor:  re.clearColor,
		PostProcess: re.postProcess,
		Wireframe:   re.wireframe,
	}
}

// Destroy releases the render targets.
func (re *RenderEngine) Destroy() {
	re.orch.Close()
}
