package core

import "fmt"

// Field ranges of a normalized address, in millionths of a degree.
const (
	LatMax = 90_000_000
	LatMin = -90_000_000
	LonMax = 180_000_000 // exclusive
	LonMin = -180_000_000

	halfTurn = 180_000_000
	fullTurn = 360_000_000
)

// FrameEarth is the frame id of the primary body.
const FrameEarth uint64 = 0

// Address is a UVoxID: a point in a spherical reference frame.
//
// Addresses are plain values. Any combination of field values is a valid
// Address; Add and Normalize bring latitude and longitude into their
// canonical ranges. Equality is exact; use EqualWithin for approximate
// comparison.
type Address struct {
	// FrameID anchors the address to a reference body (0 = Earth).
	FrameID uint64 `json:"frame_id" codec:"frame_id"`
	// RadiusUM is the radial distance from the frame origin in micrometers.
	RadiusUM uint64 `json:"r_um" codec:"r_um"`
	// Lat is the latitude in millionths of a degree.
	Lat int64 `json:"lat_code" codec:"lat_code"`
	// Lon is the longitude in millionths of a degree.
	Lon int64 `json:"lon_code" codec:"lon_code"`
}

// New constructs an Address from raw field values.
func New(frameID, radiusUM uint64, lat, lon int64) Address {
	return Address{FrameID: frameID, RadiusUM: radiusUM, Lat: lat, Lon: lon}
}

// Encode is New under the codec's name. It never fails.
func Encode(frameID, radiusUM uint64, lat, lon int64) Address {
	return New(frameID, radiusUM, lat, lon)
}

// Earth constructs an Address in the Earth frame.
func Earth(radiusUM uint64, lat, lon int64) Address {
	return New(FrameEarth, radiusUM, lat, lon)
}

// Decode returns the four fields of a. It is the inverse of Encode.
func (a Address) Decode() (frameID, radiusUM uint64, lat, lon int64) {
	return a.FrameID, a.RadiusUM, a.Lat, a.Lon
}

// Tuple is an alias of Decode.
func (a Address) Tuple() (uint64, uint64, int64, int64) {
	return a.Decode()
}

// Equal reports exact equality.
func (a Address) Equal(b Address) bool {
	return a == b
}

// Compare orders addresses by their packed value, which is also the
// lexicographic order of their hex forms.
func (a Address) Compare(b Address) int {
	return a.Pack().Compare(b.Pack())
}

// IsNormalized reports whether latitude and longitude are inside their
// canonical ranges.
func (a Address) IsNormalized() bool {
	return a.Lat >= LatMin && a.Lat <= LatMax && a.Lon >= LonMin && a.Lon < LonMax
}

// LatDegrees returns the latitude in degrees.
func (a Address) LatDegrees() float64 { return float64(a.Lat) / 1e6 }

// LonDegrees returns the longitude in degrees.
func (a Address) LonDegrees() float64 { return float64(a.Lon) / 1e6 }

// RadiusMeters returns the radial distance in metres.
func (a Address) RadiusMeters() float64 { return float64(a.RadiusUM) * 1e-6 }

func (a Address) String() string {
	return fmt.Sprintf("frame=%d, r=%d µm, lat=%d, lon=%d", a.FrameID, a.RadiusUM, a.Lat, a.Lon)
}
