// Package discriminator reassembles message frames from a raw byte
// stream and identifies which obfuscation variant (masquerader)
// produced each frame, per spec.md §4.4.
package discriminator

import (
	"encoding/binary"
)

// lengthPrefixHeaderSize is the size, in bytes, of the big-endian
// frame-length prefix every Framer implementation here uses, grounded
// on the teacher's fixed-width binary frame header
// (internal/protocol/frame.go).
const lengthPrefixHeaderSize = 4

// maxFrameSize bounds a single frame to guard against a malformed or
// hostile length prefix forcing an unbounded buffer allocation.
const maxFrameSize = 16 << 20 // 16 MiB

// Framer is a stateful byte-reassembler: AddData appends bytes to an
// internal buffer; TakeFrame returns the next complete frame, if one
// is available.
type Framer interface {
	AddData(data []byte)
	TakeFrame() ([]byte, bool)
}

// LengthPrefixedFramer frames a byte stream as
// [4-byte big-endian length][payload], repeated.
type LengthPrefixedFramer struct {
	buf []byte
}

// NewLengthPrefixedFramer returns a fresh, empty framer.
func NewLengthPrefixedFramer() *LengthPrefixedFramer {
	return &LengthPrefixedFramer{}
}

// AddData implements Framer.
func (f *LengthPrefixedFramer) AddData(data []byte) {
	f.buf = append(f.buf, data...)
}

// TakeFrame implements Framer. A frame whose declared length exceeds
// maxFrameSize is treated as a stream-corruption error: the framer
// discards its buffer and reports no frame available. Callers running
// a byte-stream-handling thread should treat this as a dead-stream
// condition and drop the connection.
func (f *LengthPrefixedFramer) TakeFrame() ([]byte, bool) {
	if len(f.buf) < lengthPrefixHeaderSize {
		return nil, false
	}

	length := binary.BigEndian.Uint32(f.buf[:lengthPrefixHeaderSize])
	if length > maxFrameSize {
		f.buf = nil
		return nil, false
	}

	total := lengthPrefixHeaderSize + int(length)
	if len(f.buf) < total {
		return nil, false
	}

	frame := make([]byte, length)
	copy(frame, f.buf[lengthPrefixHeaderSize:total])
	f.buf = f.buf[total:]
	return frame, true
}

// EncodeFrame prepends the length prefix TakeFrame expects, for use by
// Masquerader.Mask implementations and callers writing to the wire.
func EncodeFrame(payload []byte) []byte {
	out := make([]byte, lengthPrefixHeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[:lengthPrefixHeaderSize], uint32(len(payload)))
	copy(out[lengthPrefixHeaderSize:], payload)
	return out
}
