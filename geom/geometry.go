// Package geom derives distances, angles, areas and volumes from decoded
// UVoxID addresses.
package geom

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/uvoxid/core"
	"github.com/signalsfoundry/uvoxid/model"
)

// Vec3 is a frame-centred Cartesian vector in metres. X points at
// latitude 0, longitude 0; Z points at the north pole.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// ToCartesian converts a to a frame-centred vector in metres.
func ToCartesian(a core.Address) Vec3 {
	r := a.RadiusMeters()
	lat := radians(a.LatDegrees())
	lon := radians(a.LonDegrees())
	return Vec3{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// FromCartesian converts a frame-centred vector in metres to a normalized
// address in the given frame.
func FromCartesian(frameID uint64, v Vec3) core.Address {
	r := v.Norm()
	if r == 0 {
		return core.New(frameID, 0, 0, 0)
	}
	lat := degrees(math.Asin(clampUnit(v.Z / r)))
	lon := degrees(math.Atan2(v.Y, v.X))
	return core.Normalize(core.New(
		frameID,
		uint64(math.Round(r*1e6)),
		int64(math.Round(lat*1e6)),
		int64(math.Round(lon*1e6)),
	))
}

// LinearDistance returns the chord distance in metres between two
// addresses, from the law of cosines on (r, lat, lon).
func LinearDistance(a, b core.Address) (float64, error) {
	if err := sameFrame(a, b); err != nil {
		return 0, err
	}
	r1, r2 := a.RadiusMeters(), b.RadiusMeters()
	cosGamma := centralAngleCos(a, b)
	d2 := r1*r1 + r2*r2 - 2*r1*r2*cosGamma
	if d2 < 0 {
		d2 = 0
	}
	return math.Sqrt(d2), nil
}

// HaversineDistance returns the great-circle surface distance in metres,
// measured on a sphere with the mean radius of the two addresses.
func HaversineDistance(a, b core.Address) (float64, error) {
	if err := sameFrame(a, b); err != nil {
		return 0, err
	}
	r := (a.RadiusMeters() + b.RadiusMeters()) / 2

	lat1, lon1 := radians(a.LatDegrees()), radians(a.LonDegrees())
	lat2, lon2 := radians(b.LatDegrees()), radians(b.LonDegrees())
	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return r * c, nil
}

// ElevationDegrees returns the elevation angle of target as seen from
// observer, in degrees. 0° = geometric horizon, 90° = overhead.
func ElevationDegrees(observer, target core.Address) (float64, error) {
	if err := sameFrame(observer, target); err != nil {
		return 0, err
	}
	obs := ToCartesian(observer)
	v := ToCartesian(target).Sub(obs)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90, nil
	}

	// Local zenith at observer is its normalised position vector.
	r := obs.Norm()
	if r == 0 {
		return 90, nil
	}
	zenith := Vec3{X: obs.X / r, Y: obs.Y / r, Z: obs.Z / r}

	cosGamma := clampUnit(v.Dot(zenith) / vNorm)
	return 90.0 - degrees(math.Acos(cosGamma)), nil
}

// HasLineOfSight reports whether the straight segment between a and b stays
// clear of the frame's body sphere.
func HasLineOfSight(a, b core.Address) (bool, error) {
	if err := sameFrame(a, b); err != nil {
		return false, err
	}
	frame, err := model.LookupFrame(a.FrameID)
	if err != nil {
		return false, err
	}
	return clearOfSphere(ToCartesian(a), ToCartesian(b), frame.RadiusM), nil
}

// clearOfSphere checks whether the segment p1-p2 misses a sphere of the
// given radius centred on the origin.
func clearOfSphere(p1, p2 Vec3, radius float64) bool {
	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		// Same point: visible only from outside the body.
		return p1.Dot(p1) > radius*radius
	}

	// t minimises |p1 + t v|^2 over the segment.
	t := -p1.Dot(v) / a
	t = math.Max(0, math.Min(1, t))

	closest := Vec3{
		X: p1.X + v.X*t,
		Y: p1.Y + v.Y*t,
		Z: p1.Z + v.Z*t,
	}
	return closest.Dot(closest) > radius*radius
}

func centralAngleCos(a, b core.Address) float64 {
	lat1, lon1 := radians(a.LatDegrees()), radians(a.LonDegrees())
	lat2, lon2 := radians(b.LatDegrees()), radians(b.LonDegrees())
	return clampUnit(math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1))
}

func sameFrame(a, b core.Address) error {
	if a.FrameID != b.FrameID {
		return fmt.Errorf("%w: %d and %d", core.ErrFrameMismatch, a.FrameID, b.FrameID)
	}
	return nil
}

func clampUnit(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
