package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
)

// Options tune an Orchestrator.
type Options struct {
	// Logger receives lifecycle and fallback messages. Nil discards them.
	Logger *slog.Logger
	// OnTransition, if set, is called after every state change.
	OnTransition func(from, to State, stage string)
}

// Orchestrator runs a Pipeline once per frame against a Device.
// It is not safe for concurrent use; Resize only records the new size and
// the targets are rebuilt at the start of the next RenderFrame.
type Orchestrator struct {
	dev     Device
	pipe    *Pipeline
	scene   SceneRenderer
	targets *RenderTargetSet
	logger  *slog.Logger
	onTrans func(from, to State, stage string)

	state         State
	frames        uint64
	pendingWidth  int
	pendingHeight int
	resizePending bool
	closed        bool
}

// NewOrchestrator allocates the render targets at width x height. A target
// allocation failure is returned and the orchestrator is not usable.
func NewOrchestrator(dev Device, pipe *Pipeline, sr SceneRenderer, width, height int, opts Options) (*Orchestrator, error) {
	if dev == nil || pipe == nil || sr == nil {
		return nil, fmt.Errorf("%w: device, pipeline and scene renderer are required", ErrInvalidPipeline)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := &Orchestrator{
		dev:     dev,
		pipe:    pipe,
		scene:   sr,
		targets: NewRenderTargetSet(dev),
		logger:  logger,
		onTrans: opts.OnTransition,
	}
	if err := dev.ResizeScreen(width, height); err != nil {
		return nil, fmt.Errorf("resize screen: %w", err)
	}
	if err := o.targets.CreateAll(width, height); err != nil {
		return nil, fmt.Errorf("create render targets: %w", err)
	}
	logger.Info("render targets created", "width", width, "height", height)
	return o, nil
}

// Resize schedules a viewport change for the next frame. Sizes of zero or
// less (a minimised window) are ignored.
func (o *Orchestrator) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	w, h := o.targets.Size()
	if w == width && h == height && !o.resizePending {
		return
	}
	o.pendingWidth, o.pendingHeight = width, height
	o.resizePending = true
}

// State returns the state reached by the last frame.
func (o *Orchestrator) State() State {
	return o.state
}

// Targets exposes the render target set, mainly for inspection in tests.
func (o *Orchestrator) Targets() *RenderTargetSet {
	return o.targets
}

// RenderFrame renders one frame. Post-processing failures are logged and the
// frame is redrawn directly to the back buffer; the returned result says
// which path was taken.
func (o *Orchestrator) RenderFrame(f *Frame) FrameResult {
	o.frames++
	res := FrameResult{Index: o.frames}
	if o.closed {
		res.Err = errors.New("orchestrator closed")
		return res
	}

	o.applyResize()

	if f.PostProcess {
		err := o.runPipeline(f)
		if err == nil {
			err = o.present()
		}
		if err == nil {
			res.PostProcessed = true
			res.State = o.state
			return res
		}
		res.Fallback = err
		o.logger.Warn("post-processing failed, rendering directly", "frame", o.frames, "err", err)
	}

	res.Err = o.renderDirect(f)
	res.State = o.state
	return res
}

// Close releases the render targets.
func (o *Orchestrator) Close() {
	if o.closed {
		return
	}
	o.targets.DisposeAll()
	o.closed = true
	o.logger.Info("render targets disposed")
}

func (o *Orchestrator) applyResize() {
	if !o.resizePending {
		return
	}
	w, h := o.pendingWidth, o.pendingHeight
	if err := o.dev.ResizeScreen(w, h); err != nil {
		o.logger.Error("resize screen", "width", w, "height", h, "err", err)
		return
	}
	if err := o.targets.CreateAll(w, h); err != nil {
		// Targets stay missing; frames render directly until a resize succeeds.
		o.logger.Error("recreate render targets", "width", w, "height", h, "err", err)
		return
	}
	o.resizePending = false
	o.logger.Info("render targets recreated", "width", w, "height", h, "generation", o.targets.Generation())
}

func (o *Orchestrator) transition(to State, stage string) {
	from := o.state
	o.state = to
	o.logger.Debug("pipeline transition", "from", from, "to", to, "stage", stage)
	if o.onTrans != nil {
		o.onTrans(from, to, stage)
	}
}

// runPipeline executes every stage in order. Panics raised by a backend are
// turned into errors so the frame can fall back.
func (o *Orchestrator) runPipeline(f *Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrStageUnavailable, r)
		}
	}()

	o.transition(StateIdle, "")
	if !o.targets.Ready() {
		return fmt.Errorf("%w: targets not allocated", ErrTargetUnavailable)
	}
	if err := f.Bloom.Validate(); err != nil {
		return err
	}

	for _, st := range o.pipe.stages {
		inputs := make([]Target, len(st.Inputs))
		for i, slot := range st.Inputs {
			t, err := o.targets.Target(slot)
			if err != nil {
				return fmt.Errorf("stage %s: %w", st.Name, err)
			}
			inputs[i] = t
		}

		var out Target
		if st.Output != SlotScreen {
			if out, err = o.targets.Target(st.Output); err != nil {
				return fmt.Errorf("stage %s: %w", st.Name, err)
			}
		}
		if err := o.dev.Bind(out); err != nil {
			return fmt.Errorf("stage %s: bind %s: %w", st.Name, st.Output, err)
		}
		if st.Clear {
			if err := o.dev.Clear(f.ClearColor); err != nil {
				return fmt.Errorf("stage %s: clear: %w", st.Name, err)
			}
		}
		if err := st.Run(inputs, f); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}
		o.transition(st.Reaches, st.Name)
	}
	return nil
}

func (o *Orchestrator) present() error {
	if err := o.dev.Present(); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	o.transition(StatePresented, "present")
	return nil
}

// renderDirect draws the scene straight to the back buffer.
func (o *Orchestrator) renderDirect(f *Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("direct render panic: %v", r)
		}
	}()

	o.transition(StateIdle, "")
	if err := o.dev.Bind(nil); err != nil {
		return fmt.Errorf("bind screen: %w", err)
	}
	if err := o.dev.Clear(f.ClearColor); err != nil {
		return fmt.Errorf("clear screen: %w", err)
	}
	if err := o.scene.DrawScene(f); err != nil {
		return fmt.Errorf("draw scene: %w", err)
	}
	o.transition(StateSceneDrawn, "direct")
	return o.present()
}
