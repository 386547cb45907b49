package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/uvoxid/core"
)

// ErrRadiusMismatch is returned when an area is requested between addresses
// on different spherical shells.
var ErrRadiusMismatch = errors.New("geom: addresses lie on different shells")

// SphericalPatchArea returns the area in m² of the latitude/longitude patch
// bounded by the given degrees on a sphere of radius radiusUM:
// A = R² · Δλ · |sin φ2 − sin φ1|.
func SphericalPatchArea(radiusUM uint64, lat1Deg, lat2Deg, lon1Deg, lon2Deg float64) float64 {
	r := float64(radiusUM) * 1e-6
	dlon := math.Abs(radians(lon2Deg) - radians(lon1Deg))
	return r * r * dlon * math.Abs(math.Sin(radians(lat2Deg))-math.Sin(radians(lat1Deg)))
}

// AreaBetween returns the area of the patch spanned by two addresses on the
// same shell of the same frame.
func AreaBetween(a, b core.Address) (float64, error) {
	if err := sameFrame(a, b); err != nil {
		return 0, err
	}
	if a.RadiusUM != b.RadiusUM {
		return 0, fmt.Errorf("%w: %d µm and %d µm", ErrRadiusMismatch, a.RadiusUM, b.RadiusUM)
	}
	return SphericalPatchArea(a.RadiusUM, a.LatDegrees(), b.LatDegrees(), a.LonDegrees(), b.LonDegrees()), nil
}
