package streambuf

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/streambuf/pkg/kernel"
)

// Receive reads from task context into dest, waiting up to timeout for
// data. The wait happens at most once: an early wake returns whatever is
// available. In stream mode it returns up to len(dest) bytes. In message
// mode it returns one whole message; a message longer than dest is
// dropped and 0 is returned.
func (b *Buffer) Receive(ctx context.Context, dest []byte, timeout time.Duration) int {
	n, _ := b.receive(ctx, dest, timeout, false, nil)
	return n
}

// ReceiveFromISR reads into dest without waiting. woken is set when a
// task blocked on sending was readied.
func (b *Buffer) ReceiveFromISR(dest []byte, woken *bool) int {
	n, _ := b.receive(kernel.InterruptContext(), dest, 0, true, woken)
	return n
}

// receive also reports whether a message was dropped for not fitting dest.
func (b *Buffer) receive(ctx context.Context, dest []byte, timeout time.Duration, fromISR bool, woken *bool) (int, bool) {
	b.mustBeAlive("receive")
	// a message buffer holding only a prefix has nothing to deliver
	threshold := b.FramingOverhead()
	var available int
	if !fromISR && timeout != 0 {
		available = b.waitForData(ctx, threshold, timeout)
	} else {
		available = b.bytesInBuffer()
	}
	if available <= threshold {
		return 0, false
	}
	received, dropped := b.readUnit(dest, available)
	if received > 0 {
		b.receiveCompleted(ctx, fromISR, woken)
	}
	return received, dropped
}

func (b *Buffer) waitForData(ctx context.Context, threshold int, timeout time.Duration) int {
	b.lock.Lock()
	if available := b.bytesInBuffer(); available > threshold {
		b.lock.Unlock()
		return available
	}
	task := b.sched.CurrentTask(ctx)
	if task == nil {
		b.lock.Unlock()
		violation("receive", "blocking receive outside a task")
	}
	task.NotifyStateClear()
	if b.waitingToReceive != nil {
		b.lock.Unlock()
		violation("receive", "another task is waiting to receive")
	}
	b.waitingToReceive = task
	b.lock.Unlock()

	glog.V(5).Infof("streambuf %d: %s waits to receive", b.Number(), task)
	task.Wait(ctx, timeout)

	b.lock.Lock()
	b.waitingToReceive = nil
	b.lock.Unlock()
	return b.bytesInBuffer()
}
