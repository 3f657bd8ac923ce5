// Package software is a CPU backend for the bloom pipeline. Render targets
// are postfx images, the scene is rasterized with shading.Shade, and the
// effect passes call the postfx row variants in parallel bands.
package software

import (
	"fmt"
	"runtime"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"bloom-engine/core"
	"bloom-engine/pipeline"
	"bloom-engine/postfx"
)

// Target is a CPU render target. Depth is nil for 2D-only targets.
type Target struct {
	desc     pipeline.TargetDesc
	Color    *postfx.Image
	Depth    []float32
	disposed bool
}

func newTarget(desc pipeline.TargetDesc) *Target {
	t := &Target{desc: desc, Color: postfx.NewImage(desc.Width, desc.Height)}
	if desc.Depth {
		t.Depth = make([]float32, desc.Width*desc.Height)
	}
	return t
}

func (t *Target) Desc() pipeline.TargetDesc { return t.desc }

// Dispose drops the pixel storage. Binding a disposed target fails.
func (t *Target) Dispose() {
	t.disposed = true
	t.Color = nil
	t.Depth = nil
}

func (t *Target) Disposed() bool { return t.disposed }

// Device implements pipeline.Device on the CPU.
type Device struct {
	workers   int
	screen    *Target
	bound     *Target
	presented *postfx.Image
	presents  int
}

// NewDevice returns a device that splits each pass over workers goroutines;
// zero means GOMAXPROCS.
func NewDevice(workers int) *Device {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Device{workers: workers}
}

func (d *Device) CreateTarget(desc pipeline.TargetDesc) (pipeline.Target, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("target %s: invalid size %dx%d", desc.Slot, desc.Width, desc.Height)
	}
	return newTarget(desc), nil
}

func (d *Device) ResizeScreen(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("screen: invalid size %dx%d", width, height)
	}
	d.screen = newTarget(pipeline.TargetDesc{Slot: pipeline.SlotScreen, Width: width, Height: height, Depth: true})
	d.bound = nil
	return nil
}

func (d *Device) Bind(t pipeline.Target) error {
	if t == nil {
		if d.screen == nil {
			return fmt.Errorf("%w: screen size not set", pipeline.ErrTargetUnavailable)
		}
		d.bound = d.screen
		return nil
	}
	st, err := d.resolve(t)
	if err != nil {
		return err
	}
	d.bound = st
	return nil
}

func (d *Device) Clear(c core.Color) error {
	if d.bound == nil {
		return fmt.Errorf("%w: nothing bound", pipeline.ErrTargetUnavailable)
	}
	d.bound.Color.Fill(c)
	for i := range d.bound.Depth {
		d.bound.Depth[i] = math32.Inf(1)
	}
	return nil
}

// Present copies the back buffer so it can be read after the next frame
// starts drawing.
func (d *Device) Present() error {
	if d.screen == nil {
		return fmt.Errorf("%w: screen size not set", pipeline.ErrTargetUnavailable)
	}
	d.presented = d.screen.Color.Clone()
	d.presents++
	return nil
}

// Presented returns the last presented frame, nil before the first Present.
func (d *Device) Presented() *postfx.Image {
	return d.presented
}

// PresentCount returns how many frames were presented.
func (d *Device) PresentCount() int {
	return d.presents
}

// Bound returns the active target.
func (d *Device) Bound() *Target {
	return d.bound
}

func (d *Device) resolve(t pipeline.Target) (*Target, error) {
	st, ok := t.(*Target)
	if !ok {
		return nil, fmt.Errorf("software device cannot use target %T", t)
	}
	if st.disposed {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrDisposedTarget, st.desc.Slot)
	}
	return st, nil
}

// bands splits [0,height) into contiguous row ranges and runs fn on each
// concurrently. Bands never overlap, so fn may write its rows freely.
func (d *Device) bands(height int, fn func(y0, y1 int) error) error {
	n := d.workers
	if n > height {
		n = height
	}
	if n <= 1 {
		return fn(0, height)
	}
	step := (height + n - 1) / n
	var g errgroup.Group
	for y0 := 0; y0 < height; y0 += step {
		y0, y1 := y0, min(y0+step, height)
		g.Go(func() error { return fn(y0, y1) })
	}
	return g.Wait()
}
