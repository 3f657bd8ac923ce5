// Package opengl implements the bloom pipeline's device, scene renderer and
// post-processing effects on an OpenGL 4.1 core context. Every call must be
// made from the goroutine that owns the context.
package opengl

import (
	"errors"
	"fmt"
	"log/slog"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"bloom-engine/core"
	"bloom-engine/pipeline"
)

// Target is an offscreen framebuffer with an RGBA16F color texture and, for
// the scene target, a depth renderbuffer.
type Target struct {
	desc     pipeline.TargetDesc
	FBO      uint32
	ColorTex uint32
	DepthRB  uint32
}

func (t *Target) Desc() pipeline.TargetDesc { return t.desc }

// Dispose frees the GPU objects. It is safe to call twice.
func (t *Target) Dispose() {
	if t.FBO != 0 {
		gl.DeleteFramebuffers(1, &t.FBO)
		t.FBO = 0
	}
	if t.ColorTex != 0 {
		gl.DeleteTextures(1, &t.ColorTex)
		t.ColorTex = 0
	}
	if t.DepthRB != 0 {
		gl.DeleteRenderbuffers(1, &t.DepthRB)
		t.DepthRB = 0
	}
}

func (t *Target) disposed() bool { return t.FBO == 0 }

// Device drives the default framebuffer and the offscreen targets.
type Device struct {
	swap    func()
	logger  *slog.Logger
	screenW int32
	screenH int32
	bound   *Target // nil while the screen is bound
	quadVAO uint32  // empty VAO for the fullscreen triangle
}

// NewDevice initialises OpenGL on the current context. swap presents the
// back buffer, normally the window's SwapBuffers.
func NewDevice(swap func(), logger *slog.Logger) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("OpenGL initialized", "version", gl.GoStr(gl.GetString(gl.VERSION)))

	d := &Device{swap: swap, logger: logger}
	gl.GenVertexArrays(1, &d.quadVAO)
	gl.DepthFunc(gl.LESS)
	return d, nil
}

// CreateTarget allocates a framebuffer matching desc.
func (d *Device) CreateTarget(desc pipeline.TargetDesc) (pipeline.Target, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: %s target %dx%d", pipeline.ErrTargetUnavailable, desc.Slot, desc.Width, desc.Height)
	}
	t := &Target{desc: desc}
	w, h := int32(desc.Width), int32(desc.Height)

	gl.GenTextures(1, &t.ColorTex)
	gl.BindTexture(gl.TEXTURE_2D, t.ColorTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA16F, w, h, 0, gl.RGBA, gl.HALF_FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenFramebuffers(1, &t.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.FBO)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.ColorTex, 0)

	if desc.Depth {
		gl.GenRenderbuffers(1, &t.DepthRB)
		gl.BindRenderbuffer(gl.RENDERBUFFER, t.DepthRB)
		gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, w, h)
		gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, t.DepthRB)
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	d.rebind()
	if status != gl.FRAMEBUFFER_COMPLETE {
		t.Dispose()
		return nil, fmt.Errorf("%w: %s framebuffer incomplete (0x%X)", pipeline.ErrTargetUnavailable, desc.Slot, status)
	}
	if err := glError("create target"); err != nil {
		t.Dispose()
		return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrTargetUnavailable, desc.Slot, err)
	}
	return t, nil
}

// ResizeScreen records the default framebuffer size used for its viewport.
func (d *Device) ResizeScreen(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("screen size %dx%d must be positive", width, height)
	}
	d.screenW, d.screenH = int32(width), int32(height)
	if d.bound == nil {
		gl.Viewport(0, 0, d.screenW, d.screenH)
	}
	return nil
}

// Bind makes t the draw target; nil binds the default framebuffer.
func (d *Device) Bind(t pipeline.Target) error {
	if t == nil {
		if d.screenW == 0 {
			return fmt.Errorf("%w: screen size not set", pipeline.ErrTargetUnavailable)
		}
		d.bound = nil
		d.rebind()
		return nil
	}
	gt, err := asTarget(t)
	if err != nil {
		return err
	}
	d.bound = gt
	d.rebind()
	return nil
}

func (d *Device) rebind() {
	if d.bound == nil {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		gl.Viewport(0, 0, d.screenW, d.screenH)
		return
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.bound.FBO)
	gl.Viewport(0, 0, int32(d.bound.desc.Width), int32(d.bound.desc.Height))
}

// Clear fills the bound target with c and resets its depth.
func (d *Device) Clear(c core.Color) error {
	gl.ClearColor(c.R, c.G, c.B, c.A)
	gl.ClearDepth(1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	return glError("clear")
}

func (d *Device) Present() error {
	if err := glError("present"); err != nil {
		return err
	}
	if d.swap != nil {
		d.swap()
	}
	return nil
}

// Destroy frees the device's own objects. Targets are owned by the caller.
func (d *Device) Destroy() {
	if d.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &d.quadVAO)
		d.quadVAO = 0
	}
}

func asTarget(t pipeline.Target) (*Target, error) {
	gt, ok := t.(*Target)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an OpenGL target", pipeline.ErrTargetUnavailable, t)
	}
	if gt.disposed() {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrDisposedTarget, gt.desc.Slot)
	}
	return gt, nil
}

// glError drains the GL error queue and reports the first code.
func glError(op string) error {
	var first uint32
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		if first == 0 {
			first = code
		}
	}
	if first != 0 {
		return errors.New(op + ": " + glErrorName(first))
	}
	return nil
}

func glErrorName(code uint32) string {
	switch code {
	case gl.INVALID_ENUM:
		return "GL_INVALID_ENUM"
	case gl.INVALID_VALUE:
		return "GL_INVALID_VALUE"
	case gl.INVALID_OPERATION:
		return "GL_INVALID_OPERATION"
	case gl.INVALID_FRAMEBUFFER_OPERATION:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	case gl.OUT_OF_MEMORY:
		return "GL_OUT_OF_MEMORY"
	}
	return fmt.Sprintf("GL error 0x%X", code)
}
