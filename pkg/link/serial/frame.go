// Package serial frames packets over a byte channel without integrity
// guarantees, such as a UART fed from a stream buffer.
//
// Every frame carries a sequence number. A receiver which sees an
// unexpected sequence drops what it has and resynchronizes with its
// peer using a request/acknowledge exchange:
//
//	REQ(0xff) <seq>   sender announces the next sequence it will use
//	ACK(0xfe) <seq>   reply to REQ, carrying the replier's own sequence
//
// A frame is <seq> <kind|len<<4> [len] <data...>. Lengths below 7 are
// packed into the second byte, otherwise the third byte holds a length
// up to MaxDataLength. There is no checksum; enable parity on the port
// where bit errors matter.
package serial

import (
	"time"
)

// MaxDataLength is the largest payload of a single frame.
const MaxDataLength = 0x7f

const (
	syncREQ byte = 0xff
	syncACK byte = 0xfe

	kindMask      byte = 0x8f
	shortLenLimit      = 7
)

// Seq is a frame sequence number in range [1, 0xf0).
type Seq byte

// NewSeq picks a starting sequence from the clock.
func NewSeq() Seq {
	return Seq(byte(time.Now().UnixNano())).Next()
}

// Next gets the following sequence number.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if n == 0 || n >= 0xf0 {
		n = 1
	}
	return Seq(n)
}

// IsValid checks s is not zero and doesn't collide with sync bytes.
func (s Seq) IsValid() bool {
	return s > 0 && s < 0xf0
}

// Frame is a decoded frame.
type Frame struct {
	Seq  Seq
	Kind byte
	Data []byte
}

// AppendTo appends the encoded frame to b. Data beyond MaxDataLength
// is truncated.
func (f *Frame) AppendTo(b []byte) []byte {
	data := f.Data
	if len(data) > MaxDataLength {
		data = data[:MaxDataLength]
	}
	kind := f.Kind & kindMask
	if l := byte(len(data)); l < shortLenLimit {
		b = append(b, byte(f.Seq), kind|l<<4)
	} else {
		b = append(b, byte(f.Seq), kind|shortLenLimit<<4, l)
	}
	return append(b, data...)
}
