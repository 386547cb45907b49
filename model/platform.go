package model

import "github.com/signalsfoundry/uvoxid/core"

// MotionSource indicates how an object's position is determined.
type MotionSource int

const (
	MotionSourceUnknown    MotionSource = iota
	MotionSourceStatic                  // fixed address, e.g. a ground station
	MotionSourceSpacetrack              // TLE-based orbit propagation
)

func (m MotionSource) String() string {
	switch m {
	case MotionSourceStatic:
		return "static"
	case MotionSourceSpacetrack:
		return "spacetrack"
	default:
		return "unknown"
	}
}

// TrackedObject is a physical asset (satellite, ground station, etc.) whose
// position is held as a UVoxID.
type TrackedObject struct {
	ID          string
	Name        string
	Type        string // e.g. "SATELLITE", "GROUND_STATION"
	CategoryTag string

	Position     core.Address
	MotionSource MotionSource

	NoradID uint32 // optional; useful when MotionSourceSpacetrack
}
