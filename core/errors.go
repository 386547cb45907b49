package core

import "errors"

var (
	// ErrInvalidHex is returned when a hex address is not exactly 64 hex digits.
	ErrInvalidHex = errors.New("uvoxid: invalid hex address")

	// ErrInvalidPacked is returned when a packed address is not 32 bytes.
	ErrInvalidPacked = errors.New("uvoxid: invalid packed address")

	// ErrPrecisionOutOfRange is returned when a tolerance asks for more
	// significant units than the packed form holds.
	ErrPrecisionOutOfRange = errors.New("uvoxid: significant units out of range")

	// ErrFrameMismatch is returned when two addresses anchored to different
	// reference frames are combined.
	ErrFrameMismatch = errors.New("uvoxid: reference frames differ")

	// ErrDeltaOverflow is returned when a delta component leaves the signed
	// 128-bit range.
	ErrDeltaOverflow = errors.New("uvoxid: delta overflows 128 bits")

	// ErrInvalidProto is returned for malformed protobuf wire records.
	ErrInvalidProto = errors.New("uvoxid: invalid protobuf record")
)
