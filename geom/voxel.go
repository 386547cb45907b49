package geom

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// A voxel is a cube with a 1 µm edge, the resolution of an address radius.
const (
	VoxelSizeM     = 1e-6
	VoxelVolumeM3  = VoxelSizeM * VoxelSizeM * VoxelSizeM
	sphereFraction = 4.0 / 3.0
)

// ErrUnsupportedUnit is returned for length units missing from the table.
var ErrUnsupportedUnit = errors.New("geom: unsupported unit")

// unitToMeters is built once and never written.
var unitToMeters = map[string]float64{
	"um": 1e-6,
	"mm": 1e-3,
	"cm": 1e-2,
	"m":  1.0,
	"km": 1e3,
	"in": 0.0254,
	"ft": 0.3048,
	"yd": 0.9144,
	"mi": 1609.34,
}

// CubeVoxels returns the number of voxels in a cube of the given side.
func CubeVoxels(sideM float64) uint64 {
	return uint64(math.Pow(sideM/VoxelSizeM, 3))
}

// SphereVoxels returns the number of voxels in a ball of the given radius.
func SphereVoxels(radiusM float64) uint64 {
	return uint64(sphereFraction * math.Pi * math.Pow(radiusM, 3) / VoxelVolumeM3)
}

// CylinderVoxels returns the number of voxels in a cylinder.
func CylinderVoxels(radiusM, heightM float64) uint64 {
	return uint64(math.Pi * radiusM * radiusM * heightM / VoxelVolumeM3)
}

// Units lists the supported length units.
func Units() []string {
	out := make([]string, 0, len(unitToMeters))
	for u := range unitToMeters {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// ToVoxels converts a length to a whole number of voxel edges.
func ToVoxels(value float64, unit string) (int64, error) {
	factor, err := unitFactor(unit)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(value * factor / VoxelSizeM)), nil
}

// FromVoxels converts a voxel edge count back into unit.
func FromVoxels(voxels int64, unit string) (float64, error) {
	factor, err := unitFactor(unit)
	if err != nil {
		return 0, err
	}
	return float64(voxels) * VoxelSizeM / factor, nil
}

func unitFactor(unit string) (float64, error) {
	factor, ok := unitToMeters[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
	}
	return factor, nil
}
