package stream

import (
	"encoding/binary"
	"errors"
	"io"
)

// DefaultMaxPacketSize limits the length accepted by ReadPacket.
const DefaultMaxPacketSize = 1 << 20

// ErrPacketTooLarge indicates the length prefix exceeds MaxPacketSize.
var ErrPacketTooLarge = errors.New("packet too large")

// ReadWriter implements PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
	MaxPacketSize uint32
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s, MaxPacketSize: DefaultMaxPacketSize}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if p.MaxPacketSize > 0 && size > p.MaxPacketSize {
		return nil, ErrPacketTooLarge
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(pkt)))
	if _, err := p.Write(prefix[:]); err != nil {
		return err
	}
	_, err := p.Write(pkt)
	return err
}

// Close implements io.Closer, closing the underlying stream if it's closable.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
