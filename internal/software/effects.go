package software

import (
	"fmt"

	"bloom-engine/pipeline"
	"bloom-engine/postfx"
)

// Effects implements pipeline.Effects with the postfx reference passes.
type Effects struct {
	dev *Device
	// Disabled names passes ("extract", "blur", "combine") that report
	// pipeline.ErrStageUnavailable, standing in for a missing technique.
	Disabled map[string]bool
}

func NewEffects(dev *Device) *Effects {
	return &Effects{dev: dev}
}

func (fx *Effects) Extract(src pipeline.Target, p postfx.ExtractParams) error {
	in, dst, err := fx.operands("extract", src)
	if err != nil {
		return err
	}
	return fx.dev.bands(dst.Height, func(y0, y1 int) error {
		return postfx.ExtractRows(dst, in[0], p, y0, y1)
	})
}

func (fx *Effects) Blur(src pipeline.Target, p postfx.BlurParams) error {
	in, dst, err := fx.operands("blur", src)
	if err != nil {
		return err
	}
	return fx.dev.bands(dst.Height, func(y0, y1 int) error {
		return postfx.BlurRows(dst, in[0], p, y0, y1)
	})
}

func (fx *Effects) Combine(base, bloom pipeline.Target, intensity float32) error {
	in, dst, err := fx.operands("combine", base, bloom)
	if err != nil {
		return err
	}
	return fx.dev.bands(dst.Height, func(y0, y1 int) error {
		return postfx.CombineRows(dst, in[0], in[1], intensity, y0, y1)
	})
}

// operands resolves the source images and the bound destination.
func (fx *Effects) operands(pass string, srcs ...pipeline.Target) ([]*postfx.Image, *postfx.Image, error) {
	if fx.Disabled[pass] {
		return nil, nil, fmt.Errorf("%w: %s", pipeline.ErrStageUnavailable, pass)
	}
	dst := fx.dev.bound
	if dst == nil {
		return nil, nil, fmt.Errorf("%s: %w: nothing bound", pass, pipeline.ErrTargetUnavailable)
	}
	in := make([]*postfx.Image, len(srcs))
	for i, s := range srcs {
		st, err := fx.dev.resolve(s)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", pass, err)
		}
		if st == dst {
			return nil, nil, fmt.Errorf("%s: source %s is also the destination", pass, st.desc.Slot)
		}
		in[i] = st.Color
	}
	return in, dst.Color, nil
}
