package core

import (
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf field numbers of the wire record
//
//	message UvoxId {
//	  fixed64 frame_id = 1;
//	  uint64  r_um     = 2;
//	  sint64  lat_code = 3;
//	  sint64  lon_code = 4;
//	}
const (
	protoFrameID protowire.Number = 1
	protoRadius  protowire.Number = 2
	protoLat     protowire.Number = 3
	protoLon     protowire.Number = 4
)

// EncodeProto returns the protobuf wire encoding of a. Zero fields are
// omitted, as proto3 does.
func EncodeProto(a Address) []byte {
	b := make([]byte, 0, 40)
	if a.FrameID != 0 {
		b = protowire.AppendTag(b, protoFrameID, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, a.FrameID)
	}
	if a.RadiusUM != 0 {
		b = protowire.AppendTag(b, protoRadius, protowire.VarintType)
		b = protowire.AppendVarint(b, a.RadiusUM)
	}
	if a.Lat != 0 {
		b = protowire.AppendTag(b, protoLat, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(a.Lat))
	}
	if a.Lon != 0 {
		b = protowire.AppendTag(b, protoLon, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(a.Lon))
	}
	return b
}

// DecodeProto parses a protobuf wire record. Unknown fields are skipped.
func DecodeProto(b []byte) (Address, error) {
	var a Address
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Address{}, fmt.Errorf("%w: tag: %v", ErrInvalidProto, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == protoFrameID && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			a.FrameID = v
		case num == protoRadius && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			a.RadiusUM = v
		case num == protoLat && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			a.Lat = protowire.DecodeZigZag(v)
		case num == protoLon && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			a.Lon = protowire.DecodeZigZag(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Address{}, fmt.Errorf("%w: field %d: %v", ErrInvalidProto, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return a, nil
}

var msgpackHandle = &codec.MsgpackHandle{}

// EncodeMsgpack returns the MessagePack map encoding of a, keyed by the
// same field names as the JSON form.
func EncodeMsgpack(a Address) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, msgpackHandle).Encode(a); err != nil {
		return nil, fmt.Errorf("encode msgpack: %w", err)
	}
	return out, nil
}

// DecodeMsgpack parses the output of EncodeMsgpack.
func DecodeMsgpack(b []byte) (Address, error) {
	var a Address
	if err := codec.NewDecoderBytes(b, msgpackHandle).Decode(&a); err != nil {
		return Address{}, fmt.Errorf("decode msgpack: %w", err)
	}
	return a, nil
}
