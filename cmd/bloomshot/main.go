// Command bloomshot renders frames of the bloom scene on the CPU and writes
// them to image files. It needs no window or GPU.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"bloom-engine/config"
	"bloom-engine/internal/snapshot"
	"bloom-engine/internal/software"
	"bloom-engine/renderer"
	"bloom-engine/scene"
)

type options struct {
	configPath string
	width      int
	height     int
	frames     int
	dt         float64
	out        string
	preset     string
	post       bool
	wireframe  bool
	model      string
	scale      float64
	workers    int
	quiet      bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "TOML or YAML config file")
	flag.IntVar(&o.width, "width", 0, "frame width (default from config)")
	flag.IntVar(&o.height, "height", 0, "frame height (default from config)")
	flag.IntVar(&o.frames, "frames", 1, "number of frames to render")
	flag.Float64Var(&o.dt, "dt", 1.0/30, "seconds of animation between frames")
	flag.StringVar(&o.out, "out", "frame_%03d.png", "output path; %03d is replaced by the frame number")
	flag.StringVar(&o.preset, "preset", "", "bloom preset (blue, sunlight)")
	flag.BoolVar(&o.post, "post", true, "apply bloom post-processing")
	flag.BoolVar(&o.wireframe, "wireframe", false, "draw wireframe")
	flag.StringVar(&o.model, "model", "", "glTF/GLB or OBJ model to show instead of the tree")
	flag.Float64Var(&o.scale, "scale", 0, "fit the model to this size (default from config)")
	flag.IntVar(&o.workers, "workers", 0, "render goroutines (0 = GOMAXPROCS)")
	flag.BoolVar(&o.quiet, "q", false, "no progress bar")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	renderer.SetLogger(logger)

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "bloomshot: %v\n", err)
		os.Exit(1)
	}
}

func (o *options) apply(cfg *config.Config) error {
	if o.width > 0 {
		cfg.Window.Width = o.width
	}
	if o.height > 0 {
		cfg.Window.Height = o.height
	}
	if o.preset != "" {
		cfg.Bloom.Preset = o.preset
	}
	if o.model != "" {
		cfg.Animation.Model = o.model
	}
	if o.scale > 0 {
		cfg.Animation.ModelScale = float32(o.scale)
	}
	cfg.Toggles.PostProcess = o.post
	cfg.Toggles.Wireframe = o.wireframe
	if o.frames < 1 {
		return errors.New("-frames must be at least 1")
	}
	if o.frames > 1 && !strings.Contains(o.out, "%") {
		return fmt.Errorf("-out %q needs a frame number verb such as %%03d when rendering %d frames", o.out, o.frames)
	}
	return cfg.Validate()
}

func run(o options) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if err := o.apply(&cfg); err != nil {
		return err
	}

	var model *scene.Mesh
	if cfg.Animation.Model != "" {
		m, err := renderer.LoadModel(cfg.Animation.Model, cfg.Animation.ModelScale)
		if err != nil {
			return err
		}
		model = m
	}

	dev := software.NewDevice(o.workers)
	engine, err := renderer.NewRenderEngine(renderer.Backend{
		Device:  dev,
		Scene:   software.NewSceneRenderer(dev),
		Effects: software.NewEffects(dev),
	}, &cfg, model)
	if err != nil {
		return err
	}
	defer engine.Destroy()

	if dir := filepath.Dir(o.out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var bar *progressbar.ProgressBar
	if !o.quiet {
		bar = progressbar.Default(int64(o.frames), "rendering")
		defer bar.Close()
	}

	for i := 0; i < o.frames; i++ {
		res := engine.Render()
		if res.Err != nil {
			return fmt.Errorf("frame %d: %w", i, res.Err)
		}
		if o.post && !res.PostProcessed {
			renderer.Logger().Warn("frame rendered without bloom", "frame", i, "reason", res.Fallback)
		}

		path := o.out
		if strings.Contains(path, "%") {
			path = fmt.Sprintf(o.out, i)
		}
		if err := snapshot.Save(path, dev.Presented(), snapshot.Options{}); err != nil {
			return err
		}

		engine.Update(float32(o.dt))
		if bar != nil {
			bar.Add(1)
		}
	}
	return nil
}
