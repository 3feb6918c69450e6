package streambuf

import (
	"encoding/binary"

	"github.com/golang/glog"
)

// Mode selects stream or message semantics.
type Mode uint8

const (
	// ModeStream carries bytes without boundaries.
	ModeStream Mode = iota
	// ModeMessage carries length-prefixed discrete messages.
	ModeMessage
)

// DefaultLengthPrefixSize is the message length prefix width in bytes.
const DefaultLengthPrefixSize = 4

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeMessage:
		return "message"
	}
	return "unknown"
}

// ParseMode parses the name produced by Mode.String.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "stream", "":
		return ModeStream, true
	case "message", "msg":
		return ModeMessage, true
	}
	return ModeStream, false
}

func validPrefixSize(n int) bool {
	switch n {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

func (b *Buffer) isMessage() bool {
	return b.flags&flagMessage != 0
}

// FramingOverhead returns the bytes consumed per message in addition to
// the payload, 0 in stream mode.
func (b *Buffer) FramingOverhead() int {
	if b.isMessage() {
		return b.prefixSize
	}
	return 0
}

// MaxMessageLength returns the largest payload a message buffer accepts.
// For stream buffers it's the most data the buffer can hold.
func (b *Buffer) MaxMessageLength() int {
	max := b.length - 1 - b.FramingOverhead()
	if b.isMessage() && b.prefixSize < 8 {
		if limit := 1<<(8*uint(b.prefixSize)) - 1; limit < max {
			max = limit
		}
	}
	if max < 0 {
		max = 0
	}
	return max
}

// writeUnit writes one send unit given the space available and commits
// the head. It returns the payload bytes written.
func (b *Buffer) writeUnit(data []byte, space int) int {
	head := int(b.head.Load())
	if b.isMessage() {
		if len(data) == 0 || space < len(data)+b.prefixSize {
			return 0
		}
		var prefix [8]byte
		binary.LittleEndian.PutUint64(prefix[:], uint64(len(data)))
		head = b.copyIn(prefix[:b.prefixSize], head)
	} else if len(data) > space {
		data = data[:space]
	}
	if len(data) == 0 {
		return 0
	}
	b.commitHead(b.copyIn(data, head))
	return len(data)
}

// readUnit reads one receive unit into dest and commits the tail. A
// message that doesn't fit in dest is consumed and dropped.
func (b *Buffer) readUnit(dest []byte, available int) (n int, dropped bool) {
	tail := int(b.tail.Load())
	want := len(dest)
	if b.isMessage() {
		var prefix [8]byte
		tail = b.copyOut(prefix[:b.prefixSize], tail)
		length := int(binary.LittleEndian.Uint64(prefix[:]))
		available -= b.prefixSize
		if length > len(dest) {
			glog.V(2).Infof("streambuf %d: dropped message of %d bytes, destination holds %d",
				b.Number(), length, len(dest))
			b.commitTail(b.advance(tail, length))
			return 0, true
		}
		want = length
	}
	if want > available {
		want = available
	}
	if want == 0 {
		return 0, false
	}
	b.commitTail(b.copyOut(dest[:want], tail))
	return want, false
}

// NextMessageLength returns the payload length of the oldest message
// without consuming it, or 0 if the buffer is empty or in stream mode.
func (b *Buffer) NextMessageLength() int {
	b.mustBeAlive("next message length")
	if !b.isMessage() {
		return 0
	}
	if b.bytesInBuffer() <= b.prefixSize {
		return 0
	}
	var prefix [8]byte
	b.copyOut(prefix[:b.prefixSize], int(b.tail.Load()))
	return int(binary.LittleEndian.Uint64(prefix[:]))
}
