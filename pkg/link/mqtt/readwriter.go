package mqtt

import (
	"context"
	"io"
	"sync"
)

// DataTopic is the topic a node publishes its outbound packets to.
func DataTopic(node string) string {
	return node + "/data"
}

// ReadWriter implements PacketReadWriter on a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string
	QoS      byte

	packetCh  chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, 16),
		closeCh:  make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForLink sets topics using the convention for a point to point link:
// SubTopic = remote/data
// PubTopic = local/data
func (p *ReadWriter) ForLink(local, remote string) *ReadWriter {
	return p.WithTopics(DataTopic(remote), DataTopic(local))
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.closeCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.PubWith(p.PubTopic, pkt, p.QoS, false)
	token.Wait()
	return token.Error()
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	sub := p.Queue.Sub(p.SubTopic, p.handleMsg)
	defer p.Close()
	defer sub.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closeCh:
		return nil
	}
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	p.closeOnce.Do(func() { close(p.closeCh) })
	return nil
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.closeCh:
	}
}
