package pipeline

import (
	"fmt"

	"bloom-engine/postfx"
)

// StageFunc runs one stage. inputs are the targets of the stage's declared
// input slots, in declaration order; the output is already bound.
type StageFunc func(inputs []Target, f *Frame) error

// Stage is one step of the pipeline.
type Stage struct {
	Name    string
	Reaches State // state entered once Run succeeds
	Inputs  []Slot
	Output  Slot
	Clear   bool // clear the output to Frame.ClearColor before Run
	Run     StageFunc
}

// Pipeline is a validated, ordered stage list.
type Pipeline struct {
	stages []Stage
}

// Stages returns a copy of the stage list.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Builder assembles a Pipeline. Build rejects any list that does not walk
// SceneDrawn..Composited in order, reads a slot before it is written, or
// writes the back buffer from anywhere but the final stage.
type Builder struct {
	stages []Stage
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Add(s Stage) *Builder {
	b.stages = append(b.stages, s)
	return b
}

func (b *Builder) Build() (*Pipeline, error) {
	want := []State{StateSceneDrawn, StateExtracted, StateBlurredH, StateBlurredV, StateComposited}
	if len(b.stages) != len(want) {
		return nil, fmt.Errorf("%w: %d stages, want %d", ErrInvalidPipeline, len(b.stages), len(want))
	}

	written := map[Slot]bool{}
	for i, s := range b.stages {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: stage %d has no name", ErrInvalidPipeline, i)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("%w: stage %q has no implementation", ErrInvalidPipeline, s.Name)
		}
		if s.Reaches != want[i] {
			return nil, fmt.Errorf("%w: stage %q reaches %s at position %d, want %s",
				ErrInvalidPipeline, s.Name, s.Reaches, i, want[i])
		}
		last := i == len(b.stages)-1
		if last != (s.Output == SlotScreen) {
			return nil, fmt.Errorf("%w: stage %q writes %s; only the final stage writes the screen",
				ErrInvalidPipeline, s.Name, s.Output)
		}
		if written[s.Output] {
			return nil, fmt.Errorf("%w: stage %q overwrites %s", ErrInvalidPipeline, s.Name, s.Output)
		}
		for _, in := range s.Inputs {
			if in == s.Output {
				return nil, fmt.Errorf("%w: stage %q reads and writes %s", ErrInvalidPipeline, s.Name, in)
			}
			if !written[in] {
				return nil, fmt.Errorf("%w: stage %q reads %s before it is written", ErrInvalidPipeline, s.Name, in)
			}
		}
		written[s.Output] = true
	}

	stages := make([]Stage, len(b.stages))
	copy(stages, b.stages)
	return &Pipeline{stages: stages}, nil
}

// NewBloomPipeline wires the scene renderer and the effect passes into the
// fixed bloom order: scene → extract → blur-h → blur-v → combine.
func NewBloomPipeline(sr SceneRenderer, fx Effects) (*Pipeline, error) {
	if sr == nil || fx == nil {
		return nil, fmt.Errorf("%w: scene renderer and effects are required", ErrInvalidPipeline)
	}
	return NewBuilder().
		Add(Stage{
			Name:    "scene",
			Reaches: StateSceneDrawn,
			Output:  SlotScene,
			Clear:   true,
			Run: func(_ []Target, f *Frame) error {
				return sr.DrawScene(f)
			},
		}).
		Add(Stage{
			Name:    "extract",
			Reaches: StateExtracted,
			Inputs:  []Slot{SlotScene},
			Output:  SlotExtract,
			Run: func(in []Target, f *Frame) error {
				return fx.Extract(in[0], f.Bloom.ExtractParams())
			},
		}).
		Add(Stage{
			Name:    "blur-h",
			Reaches: StateBlurredH,
			Inputs:  []Slot{SlotExtract},
			Output:  SlotBlurH,
			Run: func(in []Target, f *Frame) error {
				return fx.Blur(in[0], f.Bloom.BlurParams(postfx.Horizontal))
			},
		}).
		Add(Stage{
			Name:    "blur-v",
			Reaches: StateBlurredV,
			Inputs:  []Slot{SlotBlurH},
			Output:  SlotBlurV,
			Run: func(in []Target, f *Frame) error {
				return fx.Blur(in[0], f.Bloom.BlurParams(postfx.Vertical))
			},
		}).
		Add(Stage{
			Name:    "combine",
			Reaches: StateComposited,
			Inputs:  []Slot{SlotScene, SlotBlurV},
			Output:  SlotScreen,
			Run: func(in []Target, f *Frame) error {
				return fx.Combine(in[0], in[1], f.Bloom.Intensity)
			},
		}).
		Build()
}
