package core

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// wide is a signed integer held as a 256-bit two's-complement word. Address
// fields are 64-bit and delta components stay within 128 bits, so sums of
// the two never wrap.
type wide = uint256.Int

var (
	wideHalfTurn = *uint256.NewInt(halfTurn)
	wideFullTurn = *uint256.NewInt(fullTurn)
	wideLatMax   = *uint256.NewInt(LatMax)
	wideLatMin   = wideFromInt64(LatMin)
	wideOne      = *uint256.NewInt(1)
)

func wideFromUint64(v uint64) wide {
	var z wide
	z[0] = v
	return z
}

func wideFromInt64(v int64) wide {
	var z wide
	z[0] = uint64(v)
	if v < 0 {
		z[1], z[2], z[3] = math.MaxUint64, math.MaxUint64, math.MaxUint64
	}
	return z
}

// fits128 reports whether v lies in [-2^127, 2^127).
func fits128(v *wide) bool {
	if v[1]>>63 == 0 {
		return v[2] == 0 && v[3] == 0
	}
	return v[2] == math.MaxUint64 && v[3] == math.MaxUint64
}

// fitsInt64 reports whether v lies in the int64 range.
func fitsInt64(v *wide) bool {
	if v[0]>>63 == 0 {
		return v[1] == 0 && v[2] == 0 && v[3] == 0
	}
	return v[1] == math.MaxUint64 && v[2] == math.MaxUint64 && v[3] == math.MaxUint64
}

func wideToBig(v *wide) *big.Int {
	if v.Sign() >= 0 {
		return v.ToBig()
	}
	var abs wide
	abs.Neg(v)
	return new(big.Int).Neg(abs.ToBig())
}

// wideFromBig converts b, reporting false when it is outside the 128-bit
// signed range.
func wideFromBig(b *big.Int) (wide, bool) {
	var z wide
	abs := new(big.Int).Abs(b)
	if abs.BitLen() > 128 {
		return z, false
	}
	z.SetFromBig(abs)
	if b.Sign() < 0 {
		z.Neg(&z)
	}
	return z, fits128(&z)
}

func wideString(v *wide) string {
	return wideToBig(v).String()
}
