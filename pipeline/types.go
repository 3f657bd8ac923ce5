// Package pipeline sequences the bloom passes over a backend Device.
//
// A frame walks the states Idle → SceneDrawn → Extracted → BlurredH →
// BlurredV → Composited → Presented. Each stage declares the slots it reads
// and the slot it writes; Builder checks that dataflow once, at construction.
// The Orchestrator binds each stage's output before running it and binds the
// back buffer only for the final composite. Any stage failure degrades that
// one frame to direct rendering of the scene.
package pipeline

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"bloom-engine/core"
	"bloom-engine/postfx"
	"bloom-engine/scene"
	"bloom-engine/shading"
)

var (
	// ErrStageUnavailable is returned by a backend when a stage program or
	// one of its parameters is missing. The frame falls back to direct
	// rendering.
	ErrStageUnavailable = errors.New("pipeline stage unavailable")
	// ErrTargetUnavailable reports a render target that could not be
	// allocated or has not been created yet.
	ErrTargetUnavailable = errors.New("render target unavailable")
	// ErrInvalidPipeline is returned by Builder.Build for a stage list that
	// breaks the fixed order or the slot dataflow.
	ErrInvalidPipeline = errors.New("invalid pipeline")
	// ErrDisposedTarget is returned by a Device asked to bind or read a
	// target that has already been disposed.
	ErrDisposedTarget = errors.New("render target disposed")
)

// Slot names a render target. SlotScreen is the back buffer.
type Slot int

const (
	SlotScene Slot = iota
	SlotExtract
	SlotBlurH
	SlotBlurV
	SlotScreen
)

// offscreenSlots are the targets owned by a RenderTargetSet.
var offscreenSlots = [...]Slot{SlotScene, SlotExtract, SlotBlurH, SlotBlurV}

func (s Slot) String() string {
	switch s {
	case SlotScene:
		return "scene"
	case SlotExtract:
		return "extract"
	case SlotBlurH:
		return "blur-h"
	case SlotBlurV:
		return "blur-v"
	case SlotScreen:
		return "screen"
	}
	return "unknown"
}

// State is the orchestrator's position within one frame.
type State int

const (
	StateIdle State = iota
	StateSceneDrawn
	StateExtracted
	StateBlurredH
	StateBlurredV
	StateComposited
	StatePresented
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSceneDrawn:
		return "SceneDrawn"
	case StateExtracted:
		return "Extracted"
	case StateBlurredH:
		return "BlurredH"
	case StateBlurredV:
		return "BlurredV"
	case StateComposited:
		return "Composited"
	case StatePresented:
		return "Presented"
	}
	return "unknown"
}

// TargetDesc describes a render target to allocate.
type TargetDesc struct {
	Slot   Slot
	Width  int
	Height int
	Depth  bool // attach a depth buffer
}

// Target is a backend render target.
type Target interface {
	Desc() TargetDesc
	Dispose()
}

// Device is the backend surface the orchestrator drives. All calls happen on
// the thread that owns the device.
type Device interface {
	CreateTarget(desc TargetDesc) (Target, error)
	// Bind makes t the active render target and sets the viewport to its
	// size. A nil target selects the back buffer.
	Bind(t Target) error
	// Clear clears the bound target's color, and depth if it has one.
	Clear(c core.Color) error
	// ResizeScreen sets the back buffer size.
	ResizeScreen(width, height int) error
	Present() error
}

// SceneRenderer draws the frame's objects into the bound target.
type SceneRenderer interface {
	DrawScene(f *Frame) error
}

// Effects runs the full-screen bloom passes. Each call reads its source
// targets and writes the bound target.
type Effects interface {
	Extract(src Target, p postfx.ExtractParams) error
	Blur(src Target, p postfx.BlurParams) error
	Combine(base, bloom Target, intensity float32) error
}

// Object is one mesh placed in the world for this frame.
type Object struct {
	Mesh  *scene.Mesh
	World mgl32.Mat4
}

// Frame is the parameter block for one frame. Stages read it and never
// modify it.
type Frame struct {
	Objects     []Object
	View        mgl32.Mat4
	Projection  mgl32.Mat4
	Lighting    shading.Lighting
	Bloom       postfx.Settings
	ClearColor  core.Color
	PostProcess bool
	Wireframe   bool
}

// ViewProjection returns Projection * View.
func (f *Frame) ViewProjection() mgl32.Mat4 {
	return f.Projection.Mul4(f.View)
}

// FrameResult reports how a frame was rendered.
type FrameResult struct {
	Index         uint64
	PostProcessed bool
	// Fallback is the reason post-processing was abandoned, nil when it ran
	// or was switched off.
	Fallback error
	// Err is set only when even direct rendering failed.
	Err   error
	State State
}
