package link

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/streambuf/pkg/kernel"
	"github.com/robotalks/streambuf/pkg/streambuf"
)

type chanPipe struct {
	in      <-chan []byte
	out     chan<- []byte
	closeCh chan struct{}
	once    sync.Once
}

func newPipePair() (*chanPipe, *chanPipe) {
	ch1, ch2 := make(chan []byte, 4), make(chan []byte, 4)
	return &chanPipe{in: ch1, out: ch2, closeCh: make(chan struct{})},
		&chanPipe{in: ch2, out: ch1, closeCh: make(chan struct{})}
}

func (p *chanPipe) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.in:
		return pkt, nil
	case <-p.closeCh:
		return nil, io.EOF
	}
}

func (p *chanPipe) WritePacket(pkt []byte) error {
	select {
	case p.out <- pkt:
		return nil
	case <-p.closeCh:
		return io.ErrClosedPipe
	}
}

func (p *chanPipe) Close() error {
	p.once.Do(func() { close(p.closeCh) })
	return nil
}

var errBrokenPipe = errors.New("broken pipe")

// brokenPipe receives normally but fails every write.
type brokenPipe struct {
	*chanPipe
}

func (p brokenPipe) WritePacket([]byte) error {
	return errBrokenPipe
}

func newTestBridge(t *testing.T, k *kernel.Kernel, name string, rw PacketReadWriter, rxSize int) *Bridge {
	b := NewBridge(name, rw)
	b.Kernel = k
	var err error
	b.Tx, err = (&streambuf.Config{
		Size:            256,
		Mode:            streambuf.ModeMessage,
		OnSendCompleted: b,
		Scheduler:       k,
		Allocator:       k.Heap(),
	}).New()
	require.NoError(t, err)
	b.Rx, err = (&streambuf.Config{
		Size:      rxSize,
		Mode:      streambuf.ModeMessage,
		Scheduler: k,
		Allocator: k.Heap(),
	}).New()
	require.NoError(t, err)
	return b
}

func receive(t *testing.T, ctx context.Context, b *streambuf.Buffer) string {
	dest := make([]byte, b.Capacity())
	n := b.Receive(ctx, dest, 2*time.Second)
	require.NotZero(t, n, "nothing received")
	return string(dest[:n])
}

func TestBridge(t *testing.T) {
	k := kernel.New(1 << 16)
	p1, p2 := newPipePair()
	b1 := newTestBridge(t, k, "b1", p1, 256)
	b2 := newTestBridge(t, k, "b2", p2, 32)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 2)
	go func() { errCh <- b1.Run(ctx) }()
	go func() { errCh <- b2.Run(ctx) }()

	tctx, _ := k.TaskContext(ctx, "app")
	require.Equal(t, 5, b1.Tx.Send(tctx, []byte("hello"), time.Second))
	assert.Equal(t, "hello", receive(t, tctx, b2.Rx))

	require.Equal(t, 5, b2.Tx.Send(tctx, []byte("world"), time.Second))
	assert.Equal(t, "world", receive(t, tctx, b1.Rx))

	// doesn't fit in the receive buffer of b2
	require.Equal(t, 100, b1.Tx.Send(tctx, make([]byte, 100), time.Second))
	require.Equal(t, 3, b1.Tx.Send(tctx, []byte("end"), time.Second))
	assert.Equal(t, "end", receive(t, tctx, b2.Rx))
	assert.Eventually(t, func() bool {
		return b1.Stats() == BridgeStats{TxPackets: 3, RxPackets: 1} &&
			b2.Stats() == BridgeStats{TxPackets: 1, RxPackets: 2, RxDropped: 1}
	}, time.Second, time.Millisecond)

	cancel()
	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			assert.Equal(t, context.Canceled, err)
		case <-time.After(time.Second):
			t.Fatal("bridge didn't stop")
		}
	}
}

func TestBridgeSignalFromISR(t *testing.T) {
	k := kernel.New(1 << 12)
	p1, p2 := newPipePair()
	b := newTestBridge(t, k, "isr", p1, 64)

	var woken bool
	require.Equal(t, 3, b.Tx.SendFromISR([]byte("irq"), &woken))
	assert.True(t, woken)
	woken = false
	b.Tx.SendFromISR([]byte("irq"), &woken)
	assert.False(t, woken, "pump already signalled")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)
	for i := 0; i < 2; i++ {
		pkt, err := p2.ReadPacket()
		require.NoError(t, err)
		assert.Equal(t, "irq", string(pkt))
	}
}

func TestBridgeRunAgainAfterTransportError(t *testing.T) {
	k := kernel.New(1 << 12)
	p1, p2 := newPipePair()
	b := newTestBridge(t, k, "rerun", brokenPipe{p1}, 32)
	b.RxTimeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tctx, _ := k.TaskContext(ctx, "app")
	require.Equal(t, 20, b.Rx.Send(tctx, seqBytes(20), 0))

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()
	require.NoError(t, p2.WritePacket([]byte("stale")))
	require.Eventually(t, func() bool {
		return b.Rx.WaitingToSend() != nil
	}, time.Second, time.Millisecond, "inbound packet waits for room in Rx")

	require.Equal(t, 1, b.Tx.Send(tctx, []byte("x"), time.Second))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, errBrokenPipe)
	case <-time.After(time.Second):
		t.Fatal("bridge didn't stop on transport error")
	}
	assert.Nil(t, b.Rx.WaitingToSend(), "receive pump stopped with Run")

	p3, p4 := newPipePair()
	b.ReadWriter = p3
	go func() { errCh <- b.Run(ctx) }()
	require.NoError(t, p4.WritePacket([]byte("fresh")))
	require.Eventually(t, func() bool {
		return b.Rx.WaitingToSend() != nil
	}, time.Second, time.Millisecond)

	assert.Equal(t, string(seqBytes(20)), receive(t, tctx, b.Rx))
	assert.Equal(t, "fresh", receive(t, tctx, b.Rx))

	cancel()
	select {
	case err := <-errCh:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("bridge didn't stop")
	}
}

func seqBytes(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte('a' + i%26)
	}
	return p
}
