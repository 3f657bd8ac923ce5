package pipeline

import (
	"fmt"
)

// RenderTargetSet owns the four offscreen targets. They always share one
// size and are rebuilt, never resized in place.
type RenderTargetSet struct {
	dev        Device
	targets    map[Slot]Target
	width      int
	height     int
	generation uint64
}

func NewRenderTargetSet(dev Device) *RenderTargetSet {
	return &RenderTargetSet{dev: dev}
}

// CreateAll disposes any existing targets and allocates scene (with depth),
// extract, blur-h and blur-v at width x height. On failure nothing is left
// allocated.
func (s *RenderTargetSet) CreateAll(width, height int) error {
	s.DisposeAll()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid size %dx%d", ErrTargetUnavailable, width, height)
	}

	created := make(map[Slot]Target, len(offscreenSlots))
	for _, slot := range offscreenSlots {
		t, err := s.dev.CreateTarget(TargetDesc{
			Slot:   slot,
			Width:  width,
			Height: height,
			Depth:  slot == SlotScene,
		})
		if err != nil {
			for _, c := range created {
				c.Dispose()
			}
			return fmt.Errorf("%w: %s %dx%d: %v", ErrTargetUnavailable, slot, width, height, err)
		}
		created[slot] = t
	}

	s.targets = created
	s.width, s.height = width, height
	s.generation++
	return nil
}

// DisposeAll releases every target. It is safe to call repeatedly.
func (s *RenderTargetSet) DisposeAll() {
	for _, t := range s.targets {
		t.Dispose()
	}
	s.targets = nil
	s.width, s.height = 0, 0
}

// Target returns the target for an offscreen slot.
func (s *RenderTargetSet) Target(slot Slot) (Target, error) {
	t, ok := s.targets[slot]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetUnavailable, slot)
	}
	return t, nil
}

// Size returns the current target size, 0x0 when nothing is allocated.
func (s *RenderTargetSet) Size() (width, height int) {
	return s.width, s.height
}

// Generation increments on every successful CreateAll.
func (s *RenderTargetSet) Generation() uint64 {
	return s.generation
}

// Ready reports whether all targets are allocated.
func (s *RenderTargetSet) Ready() bool {
	return len(s.targets) == len(offscreenSlots)
}
