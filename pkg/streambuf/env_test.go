package streambuf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/streambuf/pkg/kernel"
)

type testEnv struct {
	t *testing.T
	k *kernel.Kernel
}

func newTestEnv(t *testing.T) *testEnv {
	return &testEnv{t: t, k: kernel.New(4096)}
}

func (e *testEnv) config(size, triggerLevel int, mode Mode) *Config {
	return &Config{
		Size:         size,
		TriggerLevel: triggerLevel,
		Mode:         mode,
		Scheduler:    e.k,
		Allocator:    e.k.Heap(),
	}
}

func (e *testEnv) stream(size, triggerLevel int) *Buffer {
	b, err := e.config(size, triggerLevel, ModeStream).New()
	require.NoError(e.t, err)
	return b
}

func (e *testEnv) message(size, prefixSize int) *Buffer {
	c := e.config(size, 0, ModeMessage)
	c.LengthPrefixSize = prefixSize
	b, err := c.New()
	require.NoError(e.t, err)
	return b
}

func (e *testEnv) task(name string) context.Context {
	ctx, _ := e.k.TaskContext(context.Background(), name)
	return ctx
}

// blocked waits until task is registered on the buffer and parked.
func (e *testEnv) blocked(waiting func() *kernel.Task) *kernel.Task {
	var task *kernel.Task
	require.Eventually(e.t, func() bool {
		task = waiting()
		return task != nil && task.Blocked()
	}, time.Second, time.Millisecond)
	return task
}

func (e *testEnv) receiveAsync(ctx context.Context, b *Buffer, size int, timeout time.Duration) <-chan []byte {
	resultCh := make(chan []byte, 1)
	go func() {
		dest := make([]byte, size)
		n := b.Receive(ctx, dest, timeout)
		resultCh <- dest[:n]
	}()
	return resultCh
}

func (e *testEnv) sendAsync(ctx context.Context, b *Buffer, data []byte, timeout time.Duration) <-chan int {
	resultCh := make(chan int, 1)
	go func() {
		resultCh <- b.Send(ctx, data, timeout)
	}()
	return resultCh
}

func expectNothing[T any](t *testing.T, ch <-chan T, d time.Duration) {
	select {
	case v := <-ch:
		t.Fatalf("unexpected result %v", v)
	case <-time.After(d):
	}
}

func expect[T any](t *testing.T, ch <-chan T) T {
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	var v T
	return v
}

func seq(from, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(from + i)
	}
	return p
}
