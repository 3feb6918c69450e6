package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/streambuf/pkg/kernel"
	"github.com/robotalks/streambuf/pkg/streambuf"
)

func TestReadWriteBytes(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte("abc")))
	require.NoError(t, rw.WritePacket(nil))
	assert.Equal(t, []byte{3, 0, 0, 0, 'a', 'b', 'c', 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(pkt))
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	assert.Empty(t, pkt)
	assert.NoError(t, rw.Close())
}

func TestPacketTooLarge(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(1000))
	rw := New(&buf)
	rw.MaxPacketSize = 999
	_, err := rw.ReadPacket()
	assert.Equal(t, ErrPacketTooLarge, err)
}

func TestOverStreamBuffer(t *testing.T) {
	k := kernel.New(1024)
	b, err := (&streambuf.Config{Size: 16, Scheduler: k, Allocator: k.Heap()}).New()
	require.NoError(t, err)

	wctx, _ := k.TaskContext(context.Background(), "writer")
	rctx, _ := k.TaskContext(context.Background(), "reader")
	w := New(b.Conn(wctx, time.Second))
	r := New(b.Conn(rctx, time.Second))

	packets := [][]byte{[]byte("first"), bytes.Repeat([]byte{7}, 40), []byte("last")}
	errCh := make(chan error, 1)
	go func() {
		for _, pkt := range packets {
			if err := w.WritePacket(pkt); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- nil
	}()
	for _, expected := range packets {
		pkt, err := r.ReadPacket()
		require.NoError(t, err)
		assert.Equal(t, expected, pkt)
	}
	assert.NoError(t, <-errCh)
}
