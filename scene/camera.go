package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a look-at perspective camera. FOV is the vertical field of view
// in degrees.
type Camera struct {
	Position    mgl32.Vec3
	Target      mgl32.Vec3
	Up          mgl32.Vec3
	FOV         float32
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32
}

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	return &Camera{
		Position:    mgl32.Vec3{0, 1.5, 6},
		Target:      mgl32.Vec3{0, 0.2, 0},
		Up:          mgl32.Vec3{0, 1, 0},
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
	}
}

func (c *Camera) UpdateAspectRatio(width, height float32) {
	if height > 0 {
		c.AspectRatio = width / height
	}
}

func (c *Camera) GetViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

func (c *Camera) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.AspectRatio, c.NearPlane, c.FarPlane)
}

func (c *Camera) GetViewProjectionMatrix() mgl32.Mat4 {
	return c.GetProjectionMatrix().Mul4(c.GetViewMatrix())
}

func (c *Camera) GetForward() mgl32.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

// Spinner turns a mesh about an axis at a constant angular speed. It is the
// animation state the scene renderer reads each frame.
type Spinner struct {
	Angle float32 // radians, kept in [0, 2π)
	Speed float32 // radians per second
	Axis  mgl32.Vec3
}

func NewSpinner(speed float32) *Spinner {
	return &Spinner{Speed: speed, Axis: mgl32.Vec3{0, 1, 0}}
}

// Update advances the angle by dt seconds.
func (s *Spinner) Update(dt float32) {
	s.Angle = math32.Mod(s.Angle+s.Speed*dt, 2*math32.Pi)
	if s.Angle < 0 {
		s.Angle += 2 * math32.Pi
	}
}

// World returns the object-to-world rotation.
func (s *Spinner) World() mgl32.Mat4 {
	axis := s.Axis
	if axis.Len() == 0 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return mgl32.HomogRotate3D(s.Angle, axis.Normalize())
}
