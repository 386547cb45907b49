package core

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"math/rand/v2"
	"testing"
)

// walkApply displaces a by stepping the pole reflection one crossing at a
// time on arbitrary-precision integers.
func walkApply(a Address, dr, dlat, dlon *big.Int) Address {
	r := new(big.Int).Add(new(big.Int).SetUint64(a.RadiusUM), dr)
	maxR := new(big.Int).SetUint64(math.MaxUint64)
	switch {
	case r.Sign() < 0:
		r.SetInt64(0)
	case r.Cmp(maxR) > 0:
		r.Set(maxR)
	}

	lat := new(big.Int).Add(big.NewInt(a.Lat), dlat)
	lon := new(big.Int).Add(big.NewInt(a.Lon), dlon)
	half := big.NewInt(halfTurn)
	for {
		switch {
		case lat.Cmp(big.NewInt(LatMax)) > 0:
			lat.Sub(half, lat)
		case lat.Cmp(big.NewInt(LatMin)) < 0:
			lat.Sub(new(big.Int).Neg(half), lat)
		default:
			lon.Add(lon, half)
			lon.Mod(lon, big.NewInt(fullTurn))
			lon.Sub(lon, half)
			return Address{FrameID: a.FrameID, RadiusUM: r.Uint64(), Lat: lat.Int64(), Lon: lon.Int64()}
		}
		lon.Add(lon, half)
	}
}

func mustAdd(t *testing.T, a, b Delta) Delta {
	t.Helper()
	d, err := a.Add(b)
	if err != nil {
		t.Fatalf("Delta.Add: %v", err)
	}
	return d
}

func TestApplyDeltaIncreasesRadius(t *testing.T) {
	pos := Earth(1_000_000, 0, 0)
	got := pos.Add(NewDelta(100, 50, -50))
	want := Earth(1_000_100, 50, -50)
	if got != want {
		t.Fatalf("Add = %v, want %v", got, want)
	}

	pos.Apply(NewDelta(100, 50, -50))
	if pos != want {
		t.Fatalf("Apply = %v, want %v", pos, want)
	}
}

func TestCrossNorthPole(t *testing.T) {
	pos := Earth(0, 89_999_990, 0)
	got := pos.Add(NewDelta(0, 20, 0))

	if got.Lat > LatMax {
		t.Fatalf("lat = %d, want <= %d", got.Lat, LatMax)
	}
	if got.Lat != 89_999_990 {
		t.Fatalf("lat = %d, want reflection to 89999990", got.Lat)
	}
	if got.Lon%halfTurn != 0 {
		t.Fatalf("lon = %d, want a multiple of 180e6", got.Lon)
	}
	if got.Lon != LonMin {
		t.Fatalf("lon = %d, want %d", got.Lon, LonMin)
	}
}

func TestCrossSouthPole(t *testing.T) {
	pos := Earth(0, -89_999_990, 0)
	got := pos.Add(NewDelta(0, -20, 0))

	if got.Lat < LatMin {
		t.Fatalf("lat = %d, want >= %d", got.Lat, LatMin)
	}
	if got.Lat != -89_999_990 {
		t.Fatalf("lat = %d, want reflection to -89999990", got.Lat)
	}
	if got.Lon%halfTurn != 0 {
		t.Fatalf("lon = %d, want a multiple of 180e6", got.Lon)
	}
}

func TestCrossPoleShiftsMeridian(t *testing.T) {
	got := Earth(0, 89_000_000, 10_000_000).Add(NewDelta(0, 2_000_000, 0))
	want := Earth(0, 89_000_000, -170_000_000)
	if got != want {
		t.Fatalf("Add = %v, want %v", got, want)
	}
}

func TestMultiplePoleCrossings(t *testing.T) {
	cases := []struct {
		name string
		from Address
		dlat int64
		want Address
	}{
		{"full turn", Earth(0, 0, 10_000_000), fullTurn, Earth(0, 0, 10_000_000)},
		{"half turn", Earth(0, 0, 10_000_000), halfTurn, Earth(0, 0, -170_000_000)},
		{"half turn south", Earth(0, 0, 10_000_000), -halfTurn, Earth(0, 0, -170_000_000)},
		{"three turns and a bit", Earth(0, 1, 0), 3*fullTurn + 100, Earth(0, 101, 0)},
		{"to north pole", Earth(0, 0, 0), LatMax, Earth(0, LatMax, 0)},
		{"past south pole", Earth(0, 0, 0), -270_000_000, Earth(0, 90_000_000, -180_000_000)},
	}
	for _, tc := range cases {
		got := tc.from.Add(NewDelta(0, tc.dlat, 0))
		if got != tc.want {
			t.Errorf("%s: Add = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestApplyMatchesStepwiseReflection(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	for range 2000 {
		a := Earth(rng.Uint64N(1<<40), rng.Int64N(2*LatMax+1)+LatMin, rng.Int64N(LonMax-LonMin)+LonMin)
		dr := rng.Int64N(1<<41) - 1<<40
		dlat := rng.Int64N(4_000_000_000) - 2_000_000_000
		dlon := rng.Int64N(4_000_000_000) - 2_000_000_000

		got := a.Add(NewDelta(dr, dlat, dlon))
		want := walkApply(a, big.NewInt(dr), big.NewInt(dlat), big.NewInt(dlon))
		if got != want {
			t.Fatalf("%v + (%d, %d, %d) = %v, want %v", a, dr, dlat, dlon, got, want)
		}
	}
}

func TestLongitudeWrap(t *testing.T) {
	got := Earth(0, 0, 179_999_950).Add(NewDelta(0, 0, 50))
	if got.Lon != LonMin {
		t.Fatalf("lon = %d, want %d", got.Lon, LonMin)
	}

	got = Earth(0, 0, LonMin).Add(NewDelta(0, 0, -1))
	if got.Lon != LonMax-1 {
		t.Fatalf("lon = %d, want %d", got.Lon, LonMax-1)
	}

	got = Earth(0, 0, 0).Add(NewDelta(0, 0, -725_000_000))
	if got.Lon != -5_000_000 {
		t.Fatalf("lon = %d, want -5000000", got.Lon)
	}
}

func TestRadiusSaturates(t *testing.T) {
	got := Earth(100, 0, 0).Add(NewDelta(-1_000, 0, 0))
	if got.RadiusUM != 0 {
		t.Fatalf("radius = %d, want 0", got.RadiusUM)
	}

	got = Earth(math.MaxUint64-1, 0, 0).Add(NewDelta(10, 0, 0))
	if got.RadiusUM != math.MaxUint64 {
		t.Fatalf("radius = %d, want max uint64", got.RadiusUM)
	}
}

func TestFrameUnchangedByDelta(t *testing.T) {
	got := New(2, 10, 0, 0).Add(NewDelta(5, 5, 5))
	if got.FrameID != 2 {
		t.Fatalf("frame = %d, want 2", got.FrameID)
	}
}

func TestExtremeInputsNormalize(t *testing.T) {
	extremes := []Address{
		New(0, 0, math.MaxInt64, math.MaxInt64),
		New(0, 0, math.MinInt64, math.MinInt64),
		New(0, math.MaxUint64, math.MaxInt64, math.MinInt64),
	}
	huge := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	hugeNeg := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	bigDelta, err := NewDeltaBig(hugeNeg, huge, hugeNeg)
	if err != nil {
		t.Fatalf("NewDeltaBig: %v", err)
	}

	for _, a := range extremes {
		for _, d := range []Delta{NewDelta(0, 1, 1), {}, bigDelta} {
			got := a.Add(d)
			if !got.IsNormalized() {
				t.Fatalf("%v + %v = %v, not normalized", a, d, got)
			}
		}
	}
}

func TestAdditivityWithoutWrap(t *testing.T) {
	a := Earth(1_000_000, 10_000_000, 20_000_000)
	d1 := NewDelta(5, 1_000_000, 2_000_000)
	d2 := NewDelta(-3, -4_000_000, 5_000_000)

	stepwise := a.Add(d1).Add(d2)
	combined := a.Add(mustAdd(t, d1, d2))
	if stepwise != combined {
		t.Fatalf("stepwise %v != combined %v", stepwise, combined)
	}
}

func TestAdditivityBreaksAcrossPole(t *testing.T) {
	a := Earth(1_000_000, 89_000_000, 0)
	d1 := NewDelta(0, 2_000_000, 0)
	d2 := NewDelta(0, -2_000_000, 0)

	stepwise := a.Add(d1).Add(d2)
	combined := a.Add(mustAdd(t, d1, d2))

	if combined != a {
		t.Fatalf("combined = %v, want %v", combined, a)
	}
	if want := Earth(1_000_000, 87_000_000, LonMin); stepwise != want {
		t.Fatalf("stepwise = %v, want %v", stepwise, want)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(Earth(5, 100_000_000, 190_000_000))
	want := Earth(5, 80_000_000, 10_000_000)
	if got != want {
		t.Fatalf("Normalize = %v, want %v", got, want)
	}
	if n := Normalize(want); n != want {
		t.Fatalf("Normalize of a normalized address changed it: %v", n)
	}
}

func TestSubRoundTrip(t *testing.T) {
	id1 := Earth(1_000_000, 100, 200)
	id2 := Earth(1_000_500, 120, 180)

	d, err := id2.Sub(id1)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if !d.Equal(NewDelta(500, 20, -20)) {
		t.Fatalf("Sub = %v, want dr=500 dlat=20 dlon=-20", d)
	}
	if got := id1.Add(d); got != id2 {
		t.Fatalf("id1 + (id2 - id1) = %v, want %v", got, id2)
	}
}

func TestSubUsesWideIntermediate(t *testing.T) {
	far := Earth(math.MaxUint64, LatMax, LonMax-1)
	near := Earth(0, LatMin, LonMin)

	d, err := near.Sub(far)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	wantDR := new(big.Int).Neg(new(big.Int).SetUint64(math.MaxUint64))
	if d.DR().Cmp(wantDR) != 0 {
		t.Fatalf("DR = %s, want %s", d.DR(), wantDR)
	}
	if _, _, _, ok := d.Int64s(); ok {
		t.Fatalf("Int64s should not fit a -(2^64-1) radius change")
	}
	if got := far.Add(d); got != near {
		t.Fatalf("far + (near - far) = %v, want %v", got, near)
	}
}

func TestSubRejectsFrameMismatch(t *testing.T) {
	_, err := New(0, 1, 0, 0).Sub(New(1, 1, 0, 0))
	if !errors.Is(err, ErrFrameMismatch) {
		t.Fatalf("Sub error = %v, want ErrFrameMismatch", err)
	}
}

func TestDeltaScaleAndOverflow(t *testing.T) {
	d, err := NewDelta(1, -2, 3).Scale(-4)
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}
	if !d.Equal(NewDelta(-4, 8, -12)) {
		t.Fatalf("Scale = %v", d)
	}

	top := new(big.Int).Lsh(big.NewInt(1), 126)
	near, err := NewDeltaBig(top, nil, nil)
	if err != nil {
		t.Fatalf("NewDeltaBig: %v", err)
	}
	if _, err := near.Scale(2); !errors.Is(err, ErrDeltaOverflow) {
		t.Fatalf("Scale overflow error = %v, want ErrDeltaOverflow", err)
	}
	if _, err := near.Add(near); !errors.Is(err, ErrDeltaOverflow) {
		t.Fatalf("Add overflow error = %v, want ErrDeltaOverflow", err)
	}
	if _, err := NewDeltaBig(new(big.Int).Lsh(big.NewInt(1), 127), nil, nil); !errors.Is(err, ErrDeltaOverflow) {
		t.Fatalf("NewDeltaBig(2^127) error = %v, want ErrDeltaOverflow", err)
	}
	minDelta, err := NewDeltaBig(new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127)), nil, nil)
	if err != nil {
		t.Fatalf("NewDeltaBig(-2^127): %v", err)
	}
	if _, err := minDelta.Neg(); !errors.Is(err, ErrDeltaOverflow) {
		t.Fatalf("Neg(-2^127) error = %v, want ErrDeltaOverflow", err)
	}
}

func TestDeltaAccessors(t *testing.T) {
	d := NewDelta(-7, 8, math.MinInt64)
	if d.DR().Int64() != -7 || d.DLat().Int64() != 8 || d.DLon().Int64() != math.MinInt64 {
		t.Fatalf("accessors = %s %s %s", d.DR(), d.DLat(), d.DLon())
	}
	dr, dlat, dlon, ok := d.Int64s()
	if !ok || dr != -7 || dlat != 8 || dlon != math.MinInt64 {
		t.Fatalf("Int64s = %d %d %d %v", dr, dlat, dlon, ok)
	}
	if !(Delta{}).IsZero() || d.IsZero() {
		t.Fatalf("IsZero mismatch")
	}
	if got := NewDelta(100, 50, -50).String(); got != "dr=100 µm, dlat=50, dlon=-50" {
		t.Fatalf("String() = %q", got)
	}
}

func TestDeltaJSONRoundTrip(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	d, err := NewDeltaBig(huge, big.NewInt(-5), big.NewInt(0))
	if err != nil {
		t.Fatalf("NewDeltaBig: %v", err)
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Delta
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal(%s): %v", b, err)
	}
	if !back.Equal(d) {
		t.Fatalf("round trip = %v, want %v", back, d)
	}
	if err := json.Unmarshal([]byte(`{"dr":"x"}`), &back); err == nil {
		t.Fatalf("expected invalid integer to fail")
	}
}
