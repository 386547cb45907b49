package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

var serializeCases = []Address{
	{},
	New(0, 6_371_000_000, 12_345_678, -98_765_432),
	New(42, 123, 456, -789),
	New(math.MaxUint64, math.MaxUint64, math.MinInt64, math.MaxInt64),
}

func TestJSONRoundTrip(t *testing.T) {
	for _, id := range serializeCases {
		b, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var back Address
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("Unmarshal(%s): %v", b, err)
		}
		if back != id {
			t.Fatalf("JSON round trip = %v, want %v", back, id)
		}
	}
}

func TestJSONFieldNames(t *testing.T) {
	b, err := json.Marshal(New(1, 2, -3, 4))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"frame_id":1,"r_um":2,"lat_code":-3,"lon_code":4}`
	if string(b) != want {
		t.Fatalf("Marshal = %s, want %s", b, want)
	}
}

func TestProtoRoundTrip(t *testing.T) {
	for _, id := range serializeCases {
		back, err := DecodeProto(EncodeProto(id))
		if err != nil {
			t.Fatalf("DecodeProto: %v", err)
		}
		if back != id {
			t.Fatalf("proto round trip = %v, want %v", back, id)
		}
	}
	if got := EncodeProto(Address{}); len(got) != 0 {
		t.Fatalf("zero address encodes to %d bytes, want 0", len(got))
	}
}

func TestProtoSkipsUnknownFields(t *testing.T) {
	id := New(7, 8, -9, 10)
	b := protowire.AppendTag(nil, 15, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))
	b = append(b, EncodeProto(id)...)

	back, err := DecodeProto(b)
	if err != nil {
		t.Fatalf("DecodeProto: %v", err)
	}
	if back != id {
		t.Fatalf("DecodeProto = %v, want %v", back, id)
	}
}

func TestProtoRejectsTruncatedInput(t *testing.T) {
	b := EncodeProto(New(7, 1<<40, -9, 10))
	if _, err := DecodeProto(b[:len(b)-1]); !errors.Is(err, ErrInvalidProto) {
		t.Fatalf("DecodeProto(truncated) error = %v, want ErrInvalidProto", err)
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	for _, id := range serializeCases {
		b, err := EncodeMsgpack(id)
		if err != nil {
			t.Fatalf("EncodeMsgpack: %v", err)
		}
		back, err := DecodeMsgpack(b)
		if err != nil {
			t.Fatalf("DecodeMsgpack: %v", err)
		}
		if back != id {
			t.Fatalf("msgpack round trip = %v, want %v", back, id)
		}
	}
}

func TestMsgpackRejectsGarbage(t *testing.T) {
	if _, err := DecodeMsgpack([]byte{0xc1}); err == nil {
		t.Fatalf("expected error for reserved msgpack byte")
	}
}
