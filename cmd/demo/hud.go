package main

import (
	"fmt"
	"strings"

	"bloom-engine/pipeline"
)

// statusOverlay collects the status shown in the window title.
type statusOverlay struct {
	parts []string
}

func (o *statusOverlay) add(format string, args ...interface{}) {
	o.parts = append(o.parts, fmt.Sprintf(format, args...))
}

func (o *statusOverlay) clear() {
	o.parts = o.parts[:0]
}

func (o *statusOverlay) text() string {
	return strings.Join(o.parts, " | ")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// frameMode describes how the last frame reached the screen.
func frameMode(res pipeline.FrameResult) string {
	switch {
	case res.Err != nil:
		return "error"
	case res.PostProcessed:
		return "bloom"
	case res.Fallback != nil:
		return "fallback"
	}
	return "direct"
}
