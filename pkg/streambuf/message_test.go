package streambuf

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/streambuf/pkg/kernel"
)

func TestMessageRoundTrip(t *testing.T) {
	for _, prefixSize := range []int{1, 2, 4, 8} {
		t.Run(fmt.Sprintf("prefix%d", prefixSize), func(t *testing.T) {
			e := newTestEnv(t)
			b := e.message(64, prefixSize)
			ctx := e.task("pc")
			require.Equal(t, 5, b.Send(ctx, []byte("hello"), 0))
			require.Equal(t, 6, b.Send(ctx, []byte("world!"), 0))
			assert.Equal(t, 11+2*prefixSize, b.BytesAvailable())
			assert.Equal(t, byte(5), b.storage[0])
			for _, v := range b.storage[1:prefixSize] {
				assert.Equal(t, byte(0), v)
			}

			dest := make([]byte, 16)
			assert.Equal(t, 5, b.NextMessageLength())
			assert.Equal(t, 5, b.Receive(ctx, dest, 0))
			assert.Equal(t, "hello", string(dest[:5]))
			assert.Equal(t, 6, b.NextMessageLength())
			assert.Equal(t, 6, b.Receive(ctx, dest, 0))
			assert.Equal(t, "world!", string(dest[:6]))
			assert.Equal(t, 0, b.NextMessageLength())
			assert.Equal(t, 0, b.Receive(ctx, dest, 0))
		})
	}
}

func TestMessageNeverFits(t *testing.T) {
	e := newTestEnv(t)
	b := e.message(16, 2)
	assert.Equal(t, 13, b.MaxMessageLength())

	// no task in context: the send must not try to wait
	start := time.Now()
	assert.Equal(t, 0, b.Send(context.Background(), seq(0, 15), kernel.MaxDelay))
	assert.Equal(t, 0, b.Send(context.Background(), seq(0, 14), kernel.MaxDelay))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.True(t, b.IsEmpty())

	assert.Equal(t, 13, b.Send(e.task("p"), seq(0, 13), 0))
	assert.True(t, b.IsFull())
	assert.Equal(t, 0, b.SpacesAvailable())
}

func TestMessagePrefixLimit(t *testing.T) {
	e := newTestEnv(t)
	b := e.message(1024, 1)
	ctx := e.task("pc")
	assert.Equal(t, 255, b.MaxMessageLength())
	assert.Equal(t, 0, b.Send(ctx, seq(0, 256), 0))
	assert.Equal(t, 255, b.Send(ctx, seq(0, 255), 0))
	assert.Equal(t, 255, b.NextMessageLength())
	dest := make([]byte, 300)
	assert.Equal(t, 255, b.Receive(ctx, dest, 0))
	assert.Equal(t, seq(0, 255), dest[:255])
}

func TestMessageDroppedWhenDestTooSmall(t *testing.T) {
	e := newTestEnv(t)
	b := e.message(32, 4)
	ctx := e.task("pc")
	b.Send(ctx, []byte("abcdef"), 0)
	b.Send(ctx, []byte("xy"), 0)

	dest := make([]byte, 3)
	assert.Equal(t, 0, b.Receive(ctx, dest, 0))
	assert.Equal(t, 6, b.BytesAvailable(), "first message consumed")
	assert.Equal(t, 2, b.Receive(ctx, dest, 0))
	assert.Equal(t, "xy", string(dest[:2]))
	assert.True(t, b.IsEmpty())
}

func TestMessageZeroLength(t *testing.T) {
	e := newTestEnv(t)
	b := e.message(32, 4)
	ctx := e.task("pc")
	assert.Equal(t, 0, b.Send(ctx, nil, 0))
	assert.Equal(t, 0, b.Send(ctx, []byte{}, time.Second))
	assert.True(t, b.IsEmpty())
}

func TestMessageWraps(t *testing.T) {
	e := newTestEnv(t)
	b := e.message(16, 4)
	ctx := e.task("pc")
	dest := make([]byte, 8)
	for i := 0; i < 10; i++ {
		msg := seq(i*3, 7)
		require.Equal(t, 7, b.Send(ctx, msg, 0), "round %d", i)
		require.Equal(t, 7, b.NextMessageLength(), "round %d", i)
		require.Equal(t, 7, b.Receive(ctx, dest, 0), "round %d", i)
		require.True(t, bytes.Equal(msg, dest[:7]), "round %d", i)
	}
}

func TestMessageIsFull(t *testing.T) {
	e := newTestEnv(t)
	b := e.message(8, 4)
	ctx := e.task("pc")
	assert.False(t, b.IsFull())
	assert.Equal(t, 2, b.Send(ctx, []byte{1, 2}, 0))
	assert.Equal(t, 1, b.SpacesAvailable())
	assert.True(t, b.IsFull())
	assert.Equal(t, 0, b.Send(ctx, []byte{3}, 0))
}

func TestMessageSendWaitsForWholeMessage(t *testing.T) {
	e := newTestEnv(t)
	b := e.message(16, 2)
	require.Equal(t, 10, b.Send(e.task("fill"), seq(0, 10), 0))

	sendCh := e.sendAsync(e.task("producer"), b, seq(10, 10), kernel.MaxDelay)
	e.blocked(b.WaitingToSend)
	expectNothing(t, sendCh, 20*time.Millisecond)

	cctx := e.task("consumer")
	dest := make([]byte, 16)
	require.Equal(t, 10, b.Receive(cctx, dest, 0))
	assert.Equal(t, 10, expect(t, sendCh))
	require.Equal(t, 10, b.Receive(cctx, dest, 0))
	assert.Equal(t, seq(10, 10), dest[:10])
}

func TestMessageFromISR(t *testing.T) {
	e := newTestEnv(t)
	b := e.message(32, 2)
	recvCh := e.receiveAsync(e.task("consumer"), b, 32, kernel.MaxDelay)
	e.blocked(b.WaitingToReceive)

	var woken bool
	assert.Equal(t, 4, b.SendFromISR([]byte("ping"), &woken))
	assert.True(t, woken)
	assert.Equal(t, []byte("ping"), expect(t, recvCh))

	woken = false
	b.SendFromISR([]byte("pong"), &woken)
	assert.False(t, woken)
	dest := make([]byte, 8)
	assert.Equal(t, 4, b.ReceiveFromISR(dest, &woken))
	assert.Equal(t, []byte("pong"), dest[:4])
}
