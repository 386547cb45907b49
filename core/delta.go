package core

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
)

// Delta is a displacement in the address space: a change of radius in
// micrometers and of latitude and longitude in millionths of a degree.
//
// Components are signed and may span the full 128-bit range, wide enough to
// hold the difference of any two 64-bit address fields. The zero value is
// the empty displacement.
type Delta struct {
	dr, dlat, dlon wide
}

// NewDelta builds a Delta from 64-bit components.
func NewDelta(dr, dlat, dlon int64) Delta {
	return Delta{
		dr:   wideFromInt64(dr),
		dlat: wideFromInt64(dlat),
		dlon: wideFromInt64(dlon),
	}
}

// NewDeltaBig builds a Delta from arbitrary-precision components. Each
// component must lie in [-2^127, 2^127).
func NewDeltaBig(dr, dlat, dlon *big.Int) (Delta, error) {
	var d Delta
	for _, c := range []struct {
		name string
		in   *big.Int
		out  *wide
	}{
		{"dr", dr, &d.dr},
		{"dlat", dlat, &d.dlat},
		{"dlon", dlon, &d.dlon},
	} {
		if c.in == nil {
			continue
		}
		v, ok := wideFromBig(c.in)
		if !ok {
			return Delta{}, fmt.Errorf("%w: %s=%s", ErrDeltaOverflow, c.name, c.in)
		}
		*c.out = v
	}
	return d, nil
}

// DR returns the radial component in micrometers.
func (d Delta) DR() *big.Int { return wideToBig(&d.dr) }

// DLat returns the latitude component in millionths of a degree.
func (d Delta) DLat() *big.Int { return wideToBig(&d.dlat) }

// DLon returns the longitude component in millionths of a degree.
func (d Delta) DLon() *big.Int { return wideToBig(&d.dlon) }

// Int64s returns the components as int64 when all three fit.
func (d Delta) Int64s() (dr, dlat, dlon int64, ok bool) {
	if !fitsInt64(&d.dr) || !fitsInt64(&d.dlat) || !fitsInt64(&d.dlon) {
		return 0, 0, 0, false
	}
	return int64(d.dr.Uint64()), int64(d.dlat.Uint64()), int64(d.dlon.Uint64()), true
}

// IsZero reports whether d is the empty displacement.
func (d Delta) IsZero() bool {
	return d.dr.IsZero() && d.dlat.IsZero() && d.dlon.IsZero()
}

// Equal reports component-wise equality.
func (d Delta) Equal(o Delta) bool {
	return d == o
}

// Add returns d + o.
func (d Delta) Add(o Delta) (Delta, error) {
	var out Delta
	out.dr.Add(&d.dr, &o.dr)
	out.dlat.Add(&d.dlat, &o.dlat)
	out.dlon.Add(&d.dlon, &o.dlon)
	return out.checked()
}

// Sub returns d - o.
func (d Delta) Sub(o Delta) (Delta, error) {
	var out Delta
	out.dr.Sub(&d.dr, &o.dr)
	out.dlat.Sub(&d.dlat, &o.dlat)
	out.dlon.Sub(&d.dlon, &o.dlon)
	return out.checked()
}

// Neg returns -d.
func (d Delta) Neg() (Delta, error) {
	var out Delta
	out.dr.Neg(&d.dr)
	out.dlat.Neg(&d.dlat)
	out.dlon.Neg(&d.dlon)
	return out.checked()
}

// Scale multiplies every component by factor, e.g. to project a per-step
// displacement several steps forward.
func (d Delta) Scale(factor int64) (Delta, error) {
	f := wideFromInt64(factor)
	var out Delta
	// 128-bit by 64-bit products fit in 192 bits, so the low 256 bits of
	// the unsigned product are the exact signed result.
	out.dr.Mul(&d.dr, &f)
	out.dlat.Mul(&d.dlat, &f)
	out.dlon.Mul(&d.dlon, &f)
	return out.checked()
}

func (d Delta) checked() (Delta, error) {
	if !fits128(&d.dr) || !fits128(&d.dlat) || !fits128(&d.dlon) {
		return Delta{}, ErrDeltaOverflow
	}
	return d, nil
}

func (d Delta) String() string {
	return fmt.Sprintf("dr=%s µm, dlat=%s, dlon=%s", wideString(&d.dr), wideString(&d.dlat), wideString(&d.dlon))
}

// deltaJSON carries components as decimal strings; they routinely exceed
// the integer range JSON consumers handle exactly.
type deltaJSON struct {
	DR   string `json:"dr"`
	DLat string `json:"dlat"`
	DLon string `json:"dlon"`
}

// MarshalJSON implements json.Marshaler.
func (d Delta) MarshalJSON() ([]byte, error) {
	return json.Marshal(deltaJSON{
		DR:   wideString(&d.dr),
		DLat: wideString(&d.dlat),
		DLon: wideString(&d.dlon),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Delta) UnmarshalJSON(b []byte) error {
	var raw deltaJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parse := func(name, s string) (*big.Int, error) {
		if s == "" {
			return new(big.Int), nil
		}
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("delta %s: invalid integer %q", name, s)
		}
		return v, nil
	}
	dr, err := parse("dr", raw.DR)
	if err != nil {
		return err
	}
	dlat, err := parse("dlat", raw.DLat)
	if err != nil {
		return err
	}
	dlon, err := parse("dlon", raw.DLon)
	if err != nil {
		return err
	}
	out, err := NewDeltaBig(dr, dlat, dlon)
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// Sub returns the displacement that takes b to a, so that b.Add(d) == a
// for normalized addresses. Both must share a reference frame.
func (a Address) Sub(b Address) (Delta, error) {
	if a.FrameID != b.FrameID {
		return Delta{}, fmt.Errorf("%w: %d and %d", ErrFrameMismatch, a.FrameID, b.FrameID)
	}
	ra, rb := wideFromUint64(a.RadiusUM), wideFromUint64(b.RadiusUM)
	la, lb := wideFromInt64(a.Lat), wideFromInt64(b.Lat)
	oa, ob := wideFromInt64(a.Lon), wideFromInt64(b.Lon)

	var d Delta
	d.dr.Sub(&ra, &rb)
	d.dlat.Sub(&la, &lb)
	d.dlon.Sub(&oa, &ob)
	return d, nil
}

// Add returns a displaced by d. The frame is unchanged; the radius saturates
// at 0 and at the uint64 maximum; latitude reflects over the poles (moving
// longitude by 180°) and longitude wraps into [-180°, 180°).
func (a Address) Add(d Delta) Address {
	out := a
	out.Apply(d)
	return out
}

// Apply displaces a in place. See Add.
func (a *Address) Apply(d Delta) {
	a.RadiusUM = addRadius(a.RadiusUM, &d.dr)

	lat := wideFromInt64(a.Lat)
	lat.Add(&lat, &d.dlat)
	lon := wideFromInt64(a.Lon)
	lon.Add(&lon, &d.dlon)

	latCode, reflections := reflectLatitude(&lat)
	// Only the parity matters once longitude is reduced modulo a full turn.
	if reflections%2 == 1 {
		lon.Add(&lon, &wideHalfTurn)
	}

	a.Lat = clampLatitude(latCode)
	a.Lon = wrapLongitude(&lon)
}

// Apply returns a.Add(d).
func Apply(a Address, d Delta) Address {
	return a.Add(d)
}

// Normalize brings latitude and longitude of a into their canonical ranges.
func Normalize(a Address) Address {
	return a.Add(Delta{})
}

func addRadius(r uint64, dr *wide) uint64 {
	v := wideFromUint64(r)
	v.Add(&v, dr)
	switch {
	case v.Sign() < 0:
		return 0
	case !v.IsUint64():
		return math.MaxUint64
	default:
		return v.Uint64()
	}
}

// reflectLatitude folds lat into [-90e6, 90e6], returning the folded value
// and the number of pole crossings.
func reflectLatitude(lat *wide) (int64, int) {
	var v wide
	v.Set(lat)

	// Every 360e6 past a pole is two reflections and a full longitude turn,
	// so whole turns are shed before walking the remaining crossings. This
	// keeps the walk to at most three steps for any input.
	switch {
	case v.Sgt(&wideLatMax):
		var excess, turns wide
		excess.Sub(&v, &wideLatMax)
		excess.Sub(&excess, &wideOne)
		turns.Div(&excess, &wideFullTurn)
		turns.Mul(&turns, &wideFullTurn)
		v.Sub(&v, &turns)
	case v.Slt(&wideLatMin):
		var excess, turns wide
		excess.Sub(&wideLatMin, &v)
		excess.Sub(&excess, &wideOne)
		turns.Div(&excess, &wideFullTurn)
		turns.Mul(&turns, &wideFullTurn)
		v.Add(&v, &turns)
	}

	// v is now within (-450e6, 450e6].
	code := int64(v.Uint64())
	crossings := 0
	for {
		switch {
		case code > LatMax:
			code = halfTurn - code
		case code < LatMin:
			code = -halfTurn - code
		default:
			return code, crossings
		}
		crossings++
	}
}

func clampLatitude(lat int64) int64 {
	return min(max(lat, LatMin), LatMax)
}

// wrapLongitude maps lon into [-180e6, 180e6) with a Euclidean modulo.
func wrapLongitude(lon *wide) int64 {
	var r wide
	r.Add(lon, &wideHalfTurn)
	// SMod keeps the sign of the dividend.
	r.SMod(&r, &wideFullTurn)
	if r.Sign() < 0 {
		r.Add(&r, &wideFullTurn)
	}
	return int64(r.Uint64()) - halfTurn
}
