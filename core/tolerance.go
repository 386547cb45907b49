package core

import (
	"fmt"
	"math"
)

// Tolerance granularity. One significant unit is five bits of the packed
// form, the precision step of one base-32 character.
const (
	BitsPerUnit         = 5
	MaxSignificantUnits = PackedBits / BitsPerUnit

	snapPrefix = "uvoxid:"
)

// Truncate keeps the n most significant units of p and zeroes the rest.
//
// The fields are packed contiguously, so truncation coarsens frame, radius,
// latitude and longitude together, highest field first. The result is a
// spatial bucket key in the way a geohash prefix is.
func (p Packed) Truncate(n int) (Packed, error) {
	if n < 0 || n > MaxSignificantUnits {
		return Packed{}, fmt.Errorf("%w: %d (max %d)", ErrPrecisionOutOfRange, n, MaxSignificantUnits)
	}
	drop := PackedBits - n*BitsPerUnit

	var out Packed
	for i := range out.v {
		// Word i holds bits [64i, 64i+64).
		low := drop - 64*i
		switch {
		case low <= 0:
			out.v[i] = p.v[i]
		case low >= 64:
			out.v[i] = 0
		default:
			out.v[i] = p.v[i] & (uint64(math.MaxUint64) << uint(low))
		}
	}
	return out, nil
}

// EqualWithin reports whether p and q agree in their n most significant
// units.
func (p Packed) EqualWithin(q Packed, n int) (bool, error) {
	tp, err := p.Truncate(n)
	if err != nil {
		return false, err
	}
	tq, err := q.Truncate(n)
	if err != nil {
		return false, err
	}
	return tp == tq, nil
}

// Snap truncates p to n units and renders it as "uvoxid:" followed by the
// 64-digit hex form.
func (p Packed) Snap(n int) (string, error) {
	t, err := p.Truncate(n)
	if err != nil {
		return "", err
	}
	return snapPrefix + t.Hex(), nil
}

// Truncate is a.Pack().Truncate(n).
func Truncate(a Address, n int) (Packed, error) {
	return a.Pack().Truncate(n)
}

// EqualWithin reports whether a and b fall in the same bucket at n
// significant units. It never relaxes ==.
func EqualWithin(a, b Address, n int) (bool, error) {
	return a.Pack().EqualWithin(b.Pack(), n)
}

// Snap returns the bucket key of a at n significant units.
func Snap(a Address, n int) (string, error) {
	return a.Pack().Snap(n)
}
