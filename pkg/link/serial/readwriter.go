package serial

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultSyncTimeout is how long WritePacket waits for the link to sync.
const DefaultSyncTimeout = time.Second

var (
	// ErrNotReady indicates the peer hasn't synchronized.
	ErrNotReady = errors.New("serial: not ready")
	// ErrPacketTooLarge indicates a packet exceeds MaxDataLength.
	ErrPacketTooLarge = errors.New("serial: packet too large")
)

// ReadWriter implements link.PacketReadWriter over a byte channel.
//
// ReadPacket drives the synchronization, so it must be called
// continuously for WritePacket to become ready. A sync request is only
// repeated when Read returns a timeout error or reads nothing.
type ReadWriter struct {
	io.ReadWriter
	SyncTimeout time.Duration

	parser  Parser
	rbuf    [1]byte
	started bool

	lock    sync.Mutex
	seq     Seq
	status  Status
	readyCh chan struct{}
}

// New creates a ReadWriter.
func New(rw io.ReadWriter) *ReadWriter {
	return &ReadWriter{
		ReadWriter:  rw,
		SyncTimeout: DefaultSyncTimeout,
		seq:         NewSeq(),
		readyCh:     make(chan struct{}),
	}
}

// Status gets the synchronization status.
func (p *ReadWriter) Status() Status {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.status
}

// ReadPacket implements link.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	if !p.started {
		p.started = true
		if err := p.apply(p.parser.Reset()); err != nil {
			return nil, err
		}
	}
	for {
		var r Result
		n, err := p.Read(p.rbuf[:])
		switch {
		case err != nil && os.IsTimeout(err):
			r = p.parser.Timeout()
		case err != nil:
			return nil, err
		case n == 0:
			r = p.parser.Timeout()
		default:
			r = p.parser.Parse(p.rbuf[0])
		}
		if err = p.apply(r); err != nil {
			return nil, err
		}
		if r.Frame != nil {
			return r.Frame.Data, nil
		}
	}
}

// WritePacket implements link.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > MaxDataLength {
		return ErrPacketTooLarge
	}
	if err := p.waitReady(); err != nil {
		return err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.status.IsReady() {
		return ErrNotReady
	}
	f := Frame{Seq: p.seq, Data: pkt}
	if _, err := p.Write(f.AppendTo(nil)); err != nil {
		return err
	}
	p.seq = p.seq.Next()
	return nil
}

// Close implements io.Closer, closing the underlying channel if it's closable.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (p *ReadWriter) waitReady() error {
	p.lock.Lock()
	ready, readyCh := p.status.IsReady(), p.readyCh
	p.lock.Unlock()
	if ready {
		return nil
	}
	select {
	case <-readyCh:
		return nil
	case <-time.After(p.SyncTimeout):
		return ErrNotReady
	}
}

func (p *ReadWriter) apply(r Result) (err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if wasReady := p.status.IsReady(); wasReady != r.Status.IsReady() {
		if wasReady {
			glog.V(3).Info("serial: sync lost")
			p.readyCh = make(chan struct{})
		} else {
			glog.V(3).Infof("serial: synced, peer seq %d", p.parser.peerSeq)
			close(p.readyCh)
		}
	}
	p.status = r.Status
	if r.Sync != 0 {
		_, err = p.Write([]byte{r.Sync, byte(p.seq)})
	}
	return
}
