package utils

import (
	"encoding/hex"
	"io"
)

// AppendHex appends the lowercase hex form of buf to dst.
func AppendHex(dst, buf []byte) []byte {
	return hex.AppendEncode(dst, buf)
}

// HexEncode appends two lowercase hex digits per byte of buf to w and
// returns w, so several calls can accumulate into one sink.
// An empty buf writes nothing.
func HexEncode[W io.Writer](buf []byte, w W) (W, error) {
	if len(buf) == 0 {
		return w, nil
	}
	if _, err := hex.NewEncoder(w).Write(buf); err != nil {
		return w, err
	}
	return w, nil
}

// HexEncodeString hex encodes the UTF-8 bytes of s.
func HexEncodeString(s string) string {
	return hex.EncodeToString([]byte(s))
}
