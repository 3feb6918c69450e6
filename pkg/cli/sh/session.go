package sh

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/robotalks/streambuf/pkg/env"
	"github.com/robotalks/streambuf/pkg/kernel"
	"github.com/robotalks/streambuf/pkg/streambuf"
)

// ErrNoBuffer indicates no buffer has been created.
var ErrNoBuffer = errors.New("no buffer, use create first")

// DefaultTimeout is the default wait for send and recv.
const DefaultTimeout = 100 * time.Millisecond

// Session holds the buffer operated by the shell. The shell acts as the
// producer task for sends and the consumer task for receives; interrupt
// variants run as interrupt handlers on the kernel.
type Session struct {
	Kernel *kernel.Kernel
	Config *env.Config
	Buffer *streambuf.Buffer

	static      *streambuf.StaticBuffer
	producerCtx context.Context
	consumerCtx context.Context
}

// NewSession creates a Session on a kernel created from conf.
func NewSession(conf *env.Config) (*Session, error) {
	k, err := conf.NewKernel()
	if err != nil {
		return nil, err
	}
	s := &Session{Kernel: k, Config: conf}
	s.producerCtx, _ = k.TaskContext(context.Background(), "sh.producer")
	s.consumerCtx, _ = k.TaskContext(context.Background(), "sh.consumer")
	return s, nil
}

func (s *Session) buffer() (*streambuf.Buffer, error) {
	if s.Buffer == nil {
		return nil, ErrNoBuffer
	}
	return s.Buffer, nil
}

// Create creates the buffer from args, replacing the current one.
//
//	create [-mode stream|message] [-size N] [-trigger N] [-prefix N] [-static]
func (s *Session) Create(out io.Writer, args ...string) error {
	conf := *s.Config
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&conf.Mode, "mode", conf.Mode, "stream or message")
	fs.IntVar(&conf.Size, "size", conf.Size, "buffer size in bytes")
	fs.IntVar(&conf.TriggerLevel, "trigger", conf.TriggerLevel, "trigger level in bytes")
	fs.IntVar(&conf.LengthPrefixSize, "prefix", conf.LengthPrefixSize, "message length prefix size")
	static := fs.Bool("static", false, "use caller provided storage")
	if err := fs.Parse(args); err != nil {
		return err
	}
	bc, err := conf.BufferConfig(s.Kernel)
	if err != nil {
		return err
	}
	var b *streambuf.Buffer
	var sb *streambuf.StaticBuffer
	if *static {
		sb = &streambuf.StaticBuffer{}
		b, err = bc.NewStatic(make([]byte, conf.Size), sb)
	} else {
		b, err = bc.New()
	}
	if err != nil {
		return err
	}
	if s.Buffer != nil {
		s.Buffer.Delete()
	}
	s.Buffer, s.static = b, sb
	return nil
}

// Send sends data as the producer task.
func (s *Session) Send(data []byte, timeout time.Duration) (int, error) {
	b, err := s.buffer()
	if err != nil {
		return 0, err
	}
	return b.Send(s.producerCtx, data, timeout), nil
}

// SendFromISR sends data from an interrupt handler.
func (s *Session) SendFromISR(data []byte) (n int, woken bool, err error) {
	b, err := s.buffer()
	if err != nil {
		return 0, false, err
	}
	woken = s.Kernel.Interrupt(kernel.ISRFunc(func(w *bool) {
		n = b.SendFromISR(data, w)
	}))
	return
}

// Receive receives up to max bytes as the consumer task.
func (s *Session) Receive(max int, timeout time.Duration) ([]byte, error) {
	b, err := s.buffer()
	if err != nil {
		return nil, err
	}
	dest := make([]byte, max)
	n := b.Receive(s.consumerCtx, dest, timeout)
	return dest[:n], nil
}

// ReceiveFromISR receives up to max bytes from an interrupt handler.
func (s *Session) ReceiveFromISR(max int) (data []byte, woken bool, err error) {
	b, err := s.buffer()
	if err != nil {
		return nil, false, err
	}
	dest := make([]byte, max)
	var n int
	woken = s.Kernel.Interrupt(kernel.ISRFunc(func(w *bool) {
		n = b.ReceiveFromISR(dest, w)
	}))
	return dest[:n], woken, nil
}

// Peek gets the length of the next message.
func (s *Session) Peek() (int, error) {
	b, err := s.buffer()
	if err != nil {
		return 0, err
	}
	if b.Mode() != streambuf.ModeMessage {
		return 0, fmt.Errorf("peek requires a message buffer")
	}
	return b.NextMessageLength(), nil
}

// Stat gets a snapshot of the buffer.
func (s *Session) Stat() (streambuf.State, error) {
	b, err := s.buffer()
	if err != nil {
		return streambuf.State{}, err
	}
	return b.State(), nil
}

// Reset resets the buffer.
func (s *Session) Reset() error {
	b, err := s.buffer()
	if err != nil {
		return err
	}
	return b.Reset()
}

// SetTriggerLevel changes the trigger level.
func (s *Session) SetTriggerLevel(level int) error {
	b, err := s.buffer()
	if err != nil {
		return err
	}
	return b.SetTriggerLevel(level)
}

// Delete deletes the buffer.
func (s *Session) Delete() error {
	b, err := s.buffer()
	if err != nil {
		return err
	}
	b.Delete()
	s.Buffer, s.static = nil, nil
	return nil
}
