package model

import (
	"fmt"
	"sort"
)

// Frame is a reference body an address radius is measured from.
type Frame struct {
	ID      uint64
	Name    string
	RadiusM float64 // mean body radius
}

// Well-known frame ids.
const (
	FrameEarth uint64 = 0
	FrameMoon  uint64 = 1
	FrameSun   uint64 = 2
)

var frames = map[uint64]Frame{
	FrameEarth: {ID: FrameEarth, Name: "Earth", RadiusM: 6_371_000},
	FrameMoon:  {ID: FrameMoon, Name: "Moon", RadiusM: 1_737_400},
	FrameSun:   {ID: FrameSun, Name: "Sun", RadiusM: 695_700_000},
}

// LookupFrame returns the frame with the given id.
func LookupFrame(id uint64) (Frame, error) {
	f, ok := frames[id]
	if !ok {
		return Frame{}, fmt.Errorf("frame %d not known", id)
	}
	return f, nil
}

// Frames returns the known frames ordered by id.
func Frames() []Frame {
	out := make([]Frame, 0, len(frames))
	for _, f := range frames {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SurfaceRadiusUM returns the body radius in micrometers, the radius of an
// address on the mean surface.
func (f Frame) SurfaceRadiusUM() uint64 {
	return uint64(f.RadiusM * 1e6)
}
