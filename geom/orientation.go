package geom

import (
	"fmt"

	"github.com/signalsfoundry/uvoxid/core"
)

// Orientation is the change from one address to another in human units.
type Orientation struct {
	DrUM    int64   // radial change in micrometers
	DLatDeg float64 // latitude change in degrees
	DLonDeg float64 // longitude change in degrees, within [-180, 180]
}

// SphericalDelta returns the orientation change from a to b. The longitude
// change takes the short way round the antimeridian.
func SphericalDelta(a, b core.Address) (Orientation, error) {
	d, err := b.Sub(a)
	if err != nil {
		return Orientation{}, err
	}
	dr, dlat, dlon, ok := d.Int64s()
	if !ok {
		return Orientation{}, fmt.Errorf("%w: %v", core.ErrDeltaOverflow, d)
	}

	o := Orientation{
		DrUM:    dr,
		DLatDeg: float64(dlat) / 1e6,
		DLonDeg: float64(dlon) / 1e6,
	}
	if o.DLonDeg > 180 {
		o.DLonDeg -= 360
	} else if o.DLonDeg < -180 {
		o.DLonDeg += 360
	}
	return o, nil
}
