package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom-engine/core"
	"bloom-engine/postfx"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeTarget struct {
	desc     TargetDesc
	id       int
	disposed bool
}

func (t *fakeTarget) Desc() TargetDesc { return t.desc }
func (t *fakeTarget) Dispose()         { t.disposed = true }

func name(t Target) string {
	if t == nil {
		return "screen"
	}
	ft := t.(*fakeTarget)
	return fmt.Sprintf("%s#%d", ft.desc.Slot, ft.id)
}

// recorder is a Device, SceneRenderer and Effects that logs every call.
type recorder struct {
	calls   []string
	created []*fakeTarget
	bound   Target
	screenW int
	screenH int

	failCreate  Slot
	failCreateN int // fail CreateTarget for failCreate once this many targets exist
	failEffect  string
	panicEffect string
}

func newRecorder() *recorder {
	return &recorder{failCreate: -1}
}

func (r *recorder) log(format string, args ...interface{}) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) CreateTarget(desc TargetDesc) (Target, error) {
	if desc.Slot == r.failCreate && len(r.created) >= r.failCreateN {
		return nil, errors.New("out of memory")
	}
	t := &fakeTarget{desc: desc, id: len(r.created)}
	r.created = append(r.created, t)
	return t, nil
}

func (r *recorder) Bind(t Target) error {
	if ft, ok := t.(*fakeTarget); ok && ft.disposed {
		return ErrDisposedTarget
	}
	r.bound = t
	r.log("bind %s", name(t))
	return nil
}

func (r *recorder) Clear(core.Color) error {
	r.log("clear %s", name(r.bound))
	return nil
}

func (r *recorder) ResizeScreen(w, h int) error {
	r.screenW, r.screenH = w, h
	return nil
}

func (r *recorder) Present() error {
	r.log("present")
	return nil
}

func (r *recorder) DrawScene(*Frame) error {
	r.log("draw -> %s", name(r.bound))
	return nil
}

func (r *recorder) effect(op string, srcs ...Target) error {
	if op == r.panicEffect {
		panic("technique missing")
	}
	if op == r.failEffect {
		return ErrStageUnavailable
	}
	s := op
	for _, src := range srcs {
		s += " " + name(src)
	}
	r.log("%s -> %s", s, name(r.bound))
	return nil
}

func (r *recorder) Extract(src Target, _ postfx.ExtractParams) error {
	return r.effect("extract", src)
}

func (r *recorder) Blur(src Target, p postfx.BlurParams) error {
	return r.effect("blur-"+p.Direction.String(), src)
}

func (r *recorder) Combine(base, bloom Target, _ float32) error {
	return r.effect("combine", base, bloom)
}

func newTestOrchestrator(t *testing.T, r *recorder, opts Options) *Orchestrator {
	t.Helper()
	pipe, err := NewBloomPipeline(r, r)
	require.NoError(t, err)
	o, err := NewOrchestrator(r, pipe, r, 64, 32, opts)
	require.NoError(t, err)
	r.calls = nil
	return o
}

func testFrame() *Frame {
	return &Frame{Bloom: postfx.DefaultSettings(), PostProcess: true, ClearColor: core.ColorBlack}
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestRenderFrameStageOrder(t *testing.T) {
	r := newRecorder()
	var transitions []string
	o := newTestOrchestrator(t, r, Options{OnTransition: func(from, to State, stage string) {
		transitions = append(transitions, to.String())
	}})

	res := o.RenderFrame(testFrame())
	require.NoError(t, res.Err)
	require.NoError(t, res.Fallback)
	assert.True(t, res.PostProcessed)
	assert.Equal(t, StatePresented, res.State)

	assert.Equal(t, []string{
		"bind scene#0",
		"clear scene#0",
		"draw -> scene#0",
		"bind extract#1",
		"extract scene#0 -> extract#1",
		"bind blur-h#2",
		"blur-horizontal extract#1 -> blur-h#2",
		"bind blur-v#3",
		"blur-vertical blur-h#2 -> blur-v#3",
		"bind screen",
		"combine scene#0 blur-v#3 -> screen",
		"present",
	}, r.calls)

	assert.Equal(t, []string{
		"Idle", "SceneDrawn", "Extracted", "BlurredH", "BlurredV", "Composited", "Presented",
	}, transitions)
}

func TestRenderFrameDirectWhenDisabled(t *testing.T) {
	r := newRecorder()
	o := newTestOrchestrator(t, r, Options{})
	f := testFrame()
	f.PostProcess = false

	res := o.RenderFrame(f)
	require.NoError(t, res.Err)
	assert.False(t, res.PostProcessed)
	assert.NoError(t, res.Fallback)
	assert.Equal(t, []string{"bind screen", "clear screen", "draw -> screen", "present"}, r.calls)
}

func TestRenderFrameFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*recorder, *Frame)
		target error
	}{
		{"missing technique", func(r *recorder, _ *Frame) { r.failEffect = "blur-vertical" }, ErrStageUnavailable},
		{"panicking stage", func(r *recorder, _ *Frame) { r.panicEffect = "extract" }, ErrStageUnavailable},
		{"invalid settings", func(_ *recorder, f *Frame) { f.Bloom.BlurAmount = 0 }, postfx.ErrInvalidSettings},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRecorder()
			o := newTestOrchestrator(t, r, Options{})
			f := testFrame()
			tc.setup(r, f)

			res := o.RenderFrame(f)
			require.NoError(t, res.Err, "the frame still completes")
			assert.False(t, res.PostProcessed)
			assert.ErrorIs(t, res.Fallback, tc.target)
			assert.Equal(t, StatePresented, res.State)
			assert.Equal(t, []string{"bind screen", "clear screen", "draw -> screen", "present"},
				r.calls[len(r.calls)-4:])

			// the next frame tries post-processing again
			r.failEffect, r.panicEffect = "", ""
			res = o.RenderFrame(testFrame())
			assert.True(t, res.PostProcessed)
		})
	}
}

func TestResizeHappensBetweenFrames(t *testing.T) {
	r := newRecorder()
	o := newTestOrchestrator(t, r, Options{})
	old, err := o.Targets().Target(SlotScene)
	require.NoError(t, err)

	o.Resize(128, 96)
	w, h := o.Targets().Size()
	assert.Equal(t, 64, w, "targets untouched until the next frame")
	assert.Equal(t, 32, h)
	assert.False(t, old.(*fakeTarget).disposed)

	res := o.RenderFrame(testFrame())
	require.True(t, res.PostProcessed)
	assert.True(t, old.(*fakeTarget).disposed, "stale targets are disposed")
	w, h = o.Targets().Size()
	assert.Equal(t, 128, w)
	assert.Equal(t, 96, h)
	assert.Equal(t, 128, r.screenW)
	assert.Equal(t, uint64(2), o.Targets().Generation())

	for _, slot := range offscreenSlots {
		tgt, err := o.Targets().Target(slot)
		require.NoError(t, err)
		assert.Equal(t, 128, tgt.Desc().Width)
		assert.Equal(t, slot == SlotScene, tgt.Desc().Depth)
	}
	assert.NotContains(t, r.calls, "bind scene#0")
}

func TestResizeIgnoresMinimisedWindow(t *testing.T) {
	r := newRecorder()
	o := newTestOrchestrator(t, r, Options{})
	o.Resize(0, 0)
	o.RenderFrame(testFrame())
	assert.Equal(t, uint64(1), o.Targets().Generation())
}

func TestFailedResizeRendersDirectly(t *testing.T) {
	r := newRecorder()
	o := newTestOrchestrator(t, r, Options{})
	r.failCreate, r.failCreateN = SlotBlurV, 4

	o.Resize(100, 100)
	res := o.RenderFrame(testFrame())
	require.NoError(t, res.Err)
	assert.False(t, res.PostProcessed)
	assert.ErrorIs(t, res.Fallback, ErrTargetUnavailable)

	r.failCreate = -1
	res = o.RenderFrame(testFrame())
	assert.True(t, res.PostProcessed, "resize is retried")
}

func TestNewOrchestratorFailsOnAllocation(t *testing.T) {
	r := newRecorder()
	r.failCreate = SlotBlurH
	pipe, err := NewBloomPipeline(r, r)
	require.NoError(t, err)

	_, err = NewOrchestrator(r, pipe, r, 64, 32, Options{})
	assert.ErrorIs(t, err, ErrTargetUnavailable)
	require.Len(t, r.created, 2)
	for _, c := range r.created {
		assert.True(t, c.disposed, "partial allocations are released")
	}
}

func TestCloseDisposesTargets(t *testing.T) {
	r := newRecorder()
	o := newTestOrchestrator(t, r, Options{})
	o.Close()
	o.Close()
	for _, c := range r.created {
		assert.True(t, c.disposed)
	}
	assert.False(t, o.Targets().Ready())
	assert.Error(t, o.RenderFrame(testFrame()).Err)
}

func TestDisposedTargetIsRejected(t *testing.T) {
	r := newRecorder()
	o := newTestOrchestrator(t, r, Options{})
	tgt, _ := o.Targets().Target(SlotExtract)
	tgt.Dispose()

	res := o.RenderFrame(testFrame())
	assert.ErrorIs(t, res.Fallback, ErrDisposedTarget)
	assert.NoError(t, res.Err)
}

func TestBuilderValidation(t *testing.T) {
	noop := func([]Target, *Frame) error { return nil }
	valid := func() []Stage {
		return []Stage{
			{Name: "scene", Reaches: StateSceneDrawn, Output: SlotScene, Run: noop},
			{Name: "extract", Reaches: StateExtracted, Inputs: []Slot{SlotScene}, Output: SlotExtract, Run: noop},
			{Name: "blur-h", Reaches: StateBlurredH, Inputs: []Slot{SlotExtract}, Output: SlotBlurH, Run: noop},
			{Name: "blur-v", Reaches: StateBlurredV, Inputs: []Slot{SlotBlurH}, Output: SlotBlurV, Run: noop},
			{Name: "combine", Reaches: StateComposited, Inputs: []Slot{SlotScene, SlotBlurV}, Output: SlotScreen, Run: noop},
		}
	}
	build := func(stages []Stage) error {
		b := NewBuilder()
		for _, s := range stages {
			b.Add(s)
		}
		_, err := b.Build()
		return err
	}
	require.NoError(t, build(valid()))

	tests := []struct {
		name   string
		mutate func([]Stage) []Stage
	}{
		{"extract and blur swapped", func(s []Stage) []Stage {
			s[1], s[2] = s[2], s[1]
			return s
		}},
		{"blur skipped", func(s []Stage) []Stage { return append(s[:2], s[3:]...) }},
		{"combine reads unblurred extract", func(s []Stage) []Stage {
			s[4].Inputs = []Slot{SlotScene, SlotBlurV, SlotScreen}
			return s
		}},
		{"screen written early", func(s []Stage) []Stage {
			s[3].Output = SlotScreen
			return s
		}},
		{"final stage offscreen", func(s []Stage) []Stage {
			s[4].Output = SlotBlurH
			return s
		}},
		{"missing implementation", func(s []Stage) []Stage {
			s[2].Run = nil
			return s
		}},
		{"feedback", func(s []Stage) []Stage {
			s[2].Inputs = []Slot{SlotBlurH}
			return s
		}},
		{"unnamed", func(s []Stage) []Stage {
			s[0].Name = ""
			return s
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, build(tc.mutate(valid())), ErrInvalidPipeline)
		})
	}

	_, err := NewBloomPipeline(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPipeline)
}

func TestRenderTargetSet(t *testing.T) {
	r := newRecorder()
	s := NewRenderTargetSet(r)
	_, err := s.Target(SlotScene)
	assert.ErrorIs(t, err, ErrTargetUnavailable)
	assert.ErrorIs(t, s.CreateAll(0, 10), ErrTargetUnavailable)

	require.NoError(t, s.CreateAll(8, 4))
	assert.True(t, s.Ready())
	_, err = s.Target(SlotScreen)
	assert.ErrorIs(t, err, ErrTargetUnavailable, "the screen is not owned by the set")

	s.DisposeAll()
	s.DisposeAll()
	w, h := s.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "blur-v", SlotBlurV.String())
	assert.Equal(t, "unknown", Slot(42).String())
	assert.Equal(t, "Composited", StateComposited.String())
	assert.Equal(t, "unknown", State(-1).String())
}
