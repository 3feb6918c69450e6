package streambuf

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/streambuf/pkg/kernel"
)

// Send writes data from task context, waiting up to timeout for space.
// In stream mode it writes as many bytes as fit and returns the count.
// In message mode it writes the whole message or nothing, returning 0
// at once if the message can never fit. kernel.MaxDelay waits without
// a deadline; cancelling ctx ends the wait early. ctx must carry the
// calling task when the send may wait.
func (b *Buffer) Send(ctx context.Context, data []byte, timeout time.Duration) int {
	return b.send(ctx, data, timeout, false, nil)
}

// SendFromISR writes data without waiting. woken is set when a task
// blocked on receiving was readied and a yield is advisable.
func (b *Buffer) SendFromISR(data []byte, woken *bool) int {
	return b.send(kernel.InterruptContext(), data, 0, true, woken)
}

func (b *Buffer) send(ctx context.Context, data []byte, timeout time.Duration, fromISR bool, woken *bool) int {
	b.mustBeAlive("send")
	required := len(data)
	if b.isMessage() {
		required += b.prefixSize
		if required > b.length-1 || len(data) > b.MaxMessageLength() {
			glog.V(4).Infof("streambuf %d: message of %d bytes never fits", b.Number(), len(data))
			return 0
		}
	} else if required > b.length-1 {
		required = b.length - 1
	}

	if !fromISR && timeout != 0 && required > 0 {
		b.waitForSpace(ctx, required, timeout)
	}

	sent := b.writeUnit(data, b.spacesAvailable())
	if sent > 0 && b.bytesInBuffer() >= b.TriggerLevel() {
		b.sendCompleted(ctx, fromISR, woken)
	}
	return sent
}

// waitForSpace registers the calling task as the waiting sender until
// required bytes are free or timeout runs out. Each notification
// consumes part of the timeout and the space is checked again.
func (b *Buffer) waitForSpace(ctx context.Context, required int, timeout time.Duration) {
	to := kernel.NewTimeOut()
	var task *kernel.Task
	for {
		b.lock.Lock()
		if b.spacesAvailable() >= required {
			b.lock.Unlock()
			return
		}
		if task == nil {
			if task = b.sched.CurrentTask(ctx); task == nil {
				b.lock.Unlock()
				violation("send", "blocking send outside a task")
			}
		}
		task.NotifyStateClear()
		if b.waitingToSend != nil {
			b.lock.Unlock()
			violation("send", "another task is waiting to send")
		}
		b.waitingToSend = task
		b.lock.Unlock()

		glog.V(5).Infof("streambuf %d: %s waits to send %d bytes", b.Number(), task, required)
		task.Wait(ctx, timeout)

		b.lock.Lock()
		b.waitingToSend = nil
		b.lock.Unlock()

		if to.Check(&timeout) || ctx.Err() != nil {
			return
		}
	}
}
