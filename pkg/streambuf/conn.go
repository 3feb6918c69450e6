package streambuf

import (
	"context"
	"io"
	"time"
)

// Conn adapts a Buffer to io.Reader and io.Writer in task context.
// In message mode each Write sends one message and each Read returns
// one message.
type Conn struct {
	Buffer  *Buffer
	Context context.Context
	Timeout time.Duration
}

// Conn creates a Conn using ctx and timeout for every transfer.
func (b *Buffer) Conn(ctx context.Context, timeout time.Duration) *Conn {
	return &Conn{Buffer: b, Context: ctx, Timeout: timeout}
}

// Write implements io.Writer. In stream mode it keeps sending until all
// of p is written, each call waiting up to Timeout.
func (c *Conn) Write(p []byte) (n int, err error) {
	if c.Buffer.isMessage() {
		if len(p) > c.Buffer.MaxMessageLength() {
			return 0, ErrMessageTooLarge
		}
		if n = c.Buffer.Send(c.Context, p, c.Timeout); n == 0 && len(p) > 0 {
			err = c.waitErr(io.ErrClosedPipe)
		}
		return
	}
	for n < len(p) {
		sent := c.Buffer.Send(c.Context, p[n:], c.Timeout)
		if sent == 0 {
			return n, c.waitErr(io.ErrClosedPipe)
		}
		n += sent
	}
	return
}

// Read implements io.Reader. In message mode a message longer than p is
// consumed and Read returns ErrMessageDropped.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, dropped := c.Buffer.receive(c.Context, p, c.Timeout, false, nil)
	if dropped {
		return 0, ErrMessageDropped
	}
	if n == 0 {
		return 0, c.waitErr(io.EOF)
	}
	return n, nil
}

// waitErr maps a transfer of nothing to an error. A cancelled context
// closes the Conn.
func (c *Conn) waitErr(closed error) error {
	if err := c.Context.Err(); err != nil {
		if err == context.Canceled {
			return closed
		}
		return err
	}
	return ErrTimeout
}
