package core

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Packed layout, most significant word first:
//
//	[frame_id:64][radius:64][lat + 90e6:64][lon + 180e6:64]
//
// Latitude and longitude are biased (modulo 2^64) so that normalized
// addresses keep their numeric order in the packed integer and in its hex
// form. The bias is a bijection on int64, so every Address round-trips.
const (
	PackedBits  = 256
	PackedBytes = PackedBits / 8
	HexLen      = PackedBytes * 2

	groupLen = 16

	latBias uint64 = 90_000_000
	lonBias uint64 = 180_000_000
)

// Packed is the 256-bit big-endian form of an Address.
type Packed struct {
	v uint256.Int
}

// Pack returns the canonical 256-bit form of a.
func (a Address) Pack() Packed {
	var p Packed
	// uint256 stores words least significant first.
	p.v[3] = a.FrameID
	p.v[2] = a.RadiusUM
	p.v[1] = uint64(a.Lat) + latBias
	p.v[0] = uint64(a.Lon) + lonBias
	return p
}

// Unpack is the inverse of Address.Pack.
func Unpack(p Packed) Address {
	return Address{
		FrameID:  p.v[3],
		RadiusUM: p.v[2],
		Lat:      int64(p.v[1] - latBias),
		Lon:      int64(p.v[0] - lonBias),
	}
}

// PackedFromBytes reads a 32-byte big-endian packed address.
func PackedFromBytes(b []byte) (Packed, error) {
	if len(b) != PackedBytes {
		return Packed{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPacked, len(b), PackedBytes)
	}
	var p Packed
	p.v.SetBytes32(b)
	return p, nil
}

// Bytes returns the 32-byte big-endian encoding.
func (p Packed) Bytes() [PackedBytes]byte {
	return p.v.Bytes32()
}

// Hex returns the 64-character lowercase hex encoding.
func (p Packed) Hex() string {
	b := p.Bytes()
	return hex.EncodeToString(b[:])
}

// Compare returns -1, 0 or +1 ordering p and q as unsigned integers.
func (p Packed) Compare(q Packed) int {
	return p.v.Cmp(&q.v)
}

// Hex returns the canonical text form of a: 64 lowercase hex digits, one
// 16-digit group per packed word.
func (a Address) Hex() string {
	return a.Pack().Hex()
}

// FromHex parses the output of Address.Hex. It reports false when s is not
// exactly 64 hex digits.
func FromHex(s string) (Address, bool) {
	a, err := ParseHex(s)
	if err != nil {
		return Address{}, false
	}
	return a, true
}

// ParseHex is FromHex with the failure reason.
func ParseHex(s string) (Address, error) {
	if len(s) != HexLen {
		return Address{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidHex, len(s), HexLen)
	}
	var buf [PackedBytes]byte
	for g := 0; g < HexLen/groupLen; g++ {
		group := s[g*groupLen : (g+1)*groupLen]
		if _, err := hex.Decode(buf[g*groupLen/2:(g+1)*groupLen/2], []byte(group)); err != nil {
			return Address{}, fmt.Errorf("%w: group %d %q: %v", ErrInvalidHex, g, group, err)
		}
	}
	p, err := PackedFromBytes(buf[:])
	if err != nil {
		return Address{}, err
	}
	return Unpack(p), nil
}

// MarshalText implements encoding.TextMarshaler with the hex form so packed
// keys can be used as map keys in text encodings.
func (p Packed) MarshalText() ([]byte, error) {
	return []byte(p.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Packed) UnmarshalText(text []byte) error {
	a, err := ParseHex(strings.TrimPrefix(string(text), snapPrefix))
	if err != nil {
		return err
	}
	*p = a.Pack()
	return nil
}
