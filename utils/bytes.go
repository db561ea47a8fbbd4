package utils

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Int64Size is the width of an encoded int64.
const Int64Size = 8

// ErrInvalidLength is returned when a decode input is not exactly Int64Size bytes.
var ErrInvalidLength = errors.New("invalid length for int64")

// Int64Bytes is the big-endian form of an int64.
type Int64Bytes [Int64Size]byte

// ToArray encodes v most significant byte first.
func ToArray(v int64) Int64Bytes {
	var arr Int64Bytes
	PutInt64(arr[:], v)
	return arr
}

// ToBytes is ToArray returning a freshly allocated slice.
func ToBytes(v int64) []byte {
	arr := ToArray(v)
	return arr[:]
}

// PutInt64 writes v into dst[:8]. It panics if dst is shorter than 8 bytes.
func PutInt64(dst []byte, v int64) {
	binary.BigEndian.PutUint64(dst, uint64(v))
}

// ToLong decodes the big-endian form produced by ToArray.
func ToLong(arr Int64Bytes) int64 {
	return int64(binary.BigEndian.Uint64(arr[:]))
}

// ToLongSlice decodes b, which must be exactly 8 bytes long.
func ToLongSlice(b []byte) (int64, error) {
	if len(b) != Int64Size {
		return 0, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(b))
	}
	return ToLong(Int64Bytes(b)), nil
}
