// Package tlv encodes and decodes PPP configuration option lists: a
// concatenation of (tag:u8, total_len:u8, value) entries where
// total_len counts both header bytes, per RFC 1661 §1.
package tlv

import (
	"encoding/binary"
	"fmt"
)

// Option is a single decoded (tag, value) pair from an option list.
// Value never includes the tag/length header.
type Option struct {
	Tag   uint8
	Value []byte
}

// Decode walks b and returns the option list it contains. It fails if
// the list is truncated or any declared length overflows the
// remaining bytes.
func Decode(b []byte) ([]Option, error) {
	var opts []Option
	p := 0
	for p+1 < len(b) {
		tag, length := b[p], int(b[p+1])
		if length < 2 {
			return nil, fmt.Errorf("option %d: length %d shorter than header", tag, length)
		}
		if p+length > len(b) {
			return nil, fmt.Errorf("option %d: length %d overflows option list", tag, length)
		}
		var value []byte
		if length > 2 {
			value = b[p+2 : p+length]
		}
		opts = append(opts, Option{Tag: tag, Value: value})
		p += length
	}
	if p != len(b) {
		return nil, fmt.Errorf("%d trailing bytes in option list", len(b)-p)
	}
	return opts, nil
}

// Encode serializes an option list back to wire format.
func Encode(opts []Option) []byte {
	var out []byte
	for _, o := range opts {
		out = append(out, o.Tag, uint8(len(o.Value)+2))
		out = append(out, o.Value...)
	}
	return out
}

// Append appends a single option carrying value to out; pass a nil
// value for a flag option like Protocol-Field-Compression.
func Append(out []byte, tag uint8, value []byte) []byte {
	out = append(out, tag, uint8(len(value)+2))
	return append(out, value...)
}

// AppendUint16 appends an option carrying a 16-bit big-endian value.
func AppendUint16(out []byte, tag uint8, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return Append(out, tag, b[:])
}

// AppendUint32 appends an option carrying a 32-bit big-endian value.
func AppendUint32(out []byte, tag uint8, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return Append(out, tag, b[:])
}
