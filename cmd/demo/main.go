package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"bloom-engine/config"
	"bloom-engine/core"
	"bloom-engine/internal/opengl"
	"bloom-engine/postfx"
	"bloom-engine/renderer"
	"bloom-engine/scene"
)

func main() {
	configPath := flag.String("config", "", "TOML or YAML config file")
	modelPath := flag.String("model", "", "glTF/GLB or OBJ model to show instead of the tree")
	watch := flag.Bool("watch", false, "reload -config when it changes")
	debug := flag.Bool("debug", false, "log every pipeline transition")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	renderer.SetLogger(logger)

	if err := run(logger, *configPath, *modelPath, *watch); err != nil {
		logger.Error("demo failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, modelPath string, watch bool) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if modelPath == "" {
		modelPath = cfg.Animation.Model
	}

	windowConfig := core.DefaultWindowConfig()
	windowConfig.Title = cfg.Window.Title
	windowConfig.Width = cfg.Window.Width
	windowConfig.Height = cfg.Window.Height
	windowConfig.VSync = cfg.Window.VSync

	window, err := core.NewWindow(windowConfig)
	if err != nil {
		return err
	}
	defer window.Destroy()

	dev, err := opengl.NewDevice(window.SwapBuffers, logger)
	if err != nil {
		return err
	}
	defer dev.Destroy()
	sr, err := opengl.NewSceneRenderer(dev)
	if err != nil {
		return err
	}
	defer sr.Destroy()
	fx := opengl.NewEffects(dev)
	defer fx.Destroy()
	if !fx.Available() {
		logger.Warn("bloom unavailable on this driver, frames render directly")
	}

	var model *scene.Mesh
	if modelPath != "" {
		if model, err = renderer.LoadModel(modelPath, cfg.Animation.ModelScale); err != nil {
			return err
		}
	}

	// The framebuffer can differ from the window size on HiDPI displays.
	fbW, fbH := window.GetFramebufferSize()
	cfg.Window.Width, cfg.Window.Height = fbW, fbH
	engine, err := renderer.NewRenderEngine(renderer.Backend{Device: dev, Scene: sr, Effects: fx}, &cfg, model)
	if err != nil {
		return err
	}
	defer engine.Destroy()

	if watch && configPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			err := config.Watch(ctx, configPath, logger, func(c *config.Config) {
				if err := engine.ApplyConfig(c); err != nil {
					logger.Warn("config reload rejected", "err", err)
				}
			})
			if err != nil {
				logger.Warn("config watch stopped", "err", err)
			}
		}()
	}

	logger.Info("controls: P post-process, F wireframe, 1 blue, 2 sunlight, Esc quit")

	var (
		hud        statusOverlay
		lastTime   = core.Time()
		fpsTime    = lastTime
		fpsFrames  int
		fps        float64
		lastPreset = cfg.Bloom.Preset
	)
	for !window.ShouldClose() {
		window.PollEvents()

		if window.KeyPressedOnce(core.KeyEscape) {
			window.SetShouldClose(true)
			continue
		}
		if window.KeyPressedOnce(core.KeyP) {
			logger.Info("post-processing toggled", "enabled", engine.TogglePostProcess())
		}
		if window.KeyPressedOnce(core.KeyF) {
			logger.Info("wireframe toggled", "enabled", engine.ToggleWireframe())
		}
		for key, preset := range map[int]string{core.Key1: postfx.PresetBlue, core.Key2: postfx.PresetSunlight} {
			if window.KeyPressedOnce(key) {
				if err := engine.UsePreset(preset); err != nil {
					logger.Warn("preset not applied", "preset", preset, "err", err)
				} else {
					lastPreset = preset
					logger.Info("bloom preset", "preset", preset)
				}
			}
		}
		if w, h, ok := window.TakeResize(); ok {
			engine.RequestResize(w, h)
		}

		now := core.Time()
		engine.Update(float32(now - lastTime))
		lastTime = now

		res := engine.Render()
		if res.Err != nil {
			return res.Err
		}

		fpsFrames++
		if now-fpsTime >= 0.5 {
			fps = float64(fpsFrames) / (now - fpsTime)
			fpsTime, fpsFrames = now, 0

			hud.clear()
			hud.add("%s", cfg.Window.Title)
			hud.add("%.0f fps", fps)
			hud.add("%s", frameMode(res))
			hud.add("preset %s", lastPreset)
			hud.add("wireframe %s", onOff(engine.Wireframe()))
			window.SetTitle(hud.text())
		}
	}
	return nil
}
