package link

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/streambuf/pkg/kernel"
	"github.com/robotalks/streambuf/pkg/streambuf"
)

// DefaultRxTimeout is how long an inbound packet waits for room in Rx.
const DefaultRxTimeout = 100 * time.Millisecond

// Bridge forwards messages between a pair of buffers and a packet
// transport. Local tasks send to Tx and receive from Rx.
//
// Tx must be created with the Bridge as its send completed handler so
// the outbound pump is signalled instead of a waiting task.
type Bridge struct {
	Name       string
	Tx         *streambuf.Buffer
	Rx         *streambuf.Buffer
	ReadWriter PacketReadWriter
	Kernel     *kernel.Kernel
	RxTimeout  time.Duration

	txCh      chan struct{}
	txPackets atomic.Uint64
	rxPackets atomic.Uint64
	rxDropped atomic.Uint64
}

// BridgeStats are the packet counters of a Bridge.
type BridgeStats struct {
	TxPackets uint64
	RxPackets uint64
	RxDropped uint64
}

// NewBridge creates a Bridge over rw. Tx and Rx are set afterwards.
func NewBridge(name string, rw PacketReadWriter) *Bridge {
	return &Bridge{
		Name:       name,
		ReadWriter: rw,
		RxTimeout:  DefaultRxTimeout,
		txCh:       make(chan struct{}, 1),
	}
}

// Completed implements streambuf.CompletionHandler.
func (b *Bridge) Completed(ctx context.Context, buf *streambuf.Buffer, fromISR bool, woken *bool) {
	select {
	case b.txCh <- struct{}{}:
		if fromISR && woken != nil {
			*woken = true
		}
	default:
	}
}

// Stats gets the packet counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		TxPackets: b.txPackets.Load(),
		RxPackets: b.rxPackets.Load(),
		RxDropped: b.rxDropped.Load(),
	}
}

// Run implements Runnable. It returns after both pumps stopped, closing
// the transport on the way, so the same Bridge can be run again.
func (b *Bridge) Run(ctx context.Context) error {
	k := b.Kernel
	if k == nil {
		k = kernel.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	txCtx, _ := k.TaskContext(ctx, b.Name+".tx")
	rxCtx, _ := k.TaskContext(ctx, b.Name+".rx")

	var rxErr error
	rxDone := make(chan struct{})
	go func() {
		defer close(rxDone)
		rxErr = b.receiveLoop(rxCtx)
	}()
	err := b.transmitLoop(txCtx, rxDone)
	cancel()
	b.Close()
	<-rxDone
	if err == nil {
		err = rxErr
	}
	return err
}

// Close implements io.Closer.
func (b *Bridge) Close() error {
	if closer, ok := b.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// transmitLoop returns nil when the receive pump stopped first.
func (b *Bridge) transmitLoop(ctx context.Context, rxDone <-chan struct{}) error {
	buf := make([]byte, b.Tx.Capacity())
	for {
		for {
			n := b.Tx.Receive(ctx, buf, 0)
			if n == 0 {
				break
			}
			pkt := make([]byte, n)
			copy(pkt, buf)
			if err := b.ReadWriter.WritePacket(pkt); err != nil {
				return err
			}
			b.txPackets.Add(1)
		}
		select {
		case <-b.txCh:
		case <-rxDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) receiveLoop(ctx context.Context) error {
	rx := b.Rx.Conn(ctx, b.RxTimeout)
	for {
		pkt, err := b.ReadWriter.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if _, err = rx.Write(pkt); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.rxDropped.Add(1)
			if errors.Is(err, streambuf.ErrMessageTooLarge) {
				glog.Warningf("%s: dropped inbound packet of %d bytes: too large", b.Name, len(pkt))
			} else {
				glog.Warningf("%s: dropped inbound packet of %d bytes: %v", b.Name, len(pkt), err)
			}
			continue
		}
		b.rxPackets.Add(1)
	}
}
