package streambuf

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/streambuf/pkg/kernel"
)

// CompletionHandler is invoked after a send or receive has transferred
// data. fromISR tells whether the caller is in interrupt context, in
// which case the handler must not block and should set woken when it
// readies a task.
type CompletionHandler interface {
	Completed(ctx context.Context, b *Buffer, fromISR bool, woken *bool)
}

// CompletedFunc is the func form of CompletionHandler.
type CompletedFunc func(ctx context.Context, b *Buffer, fromISR bool, woken *bool)

// Completed implements CompletionHandler.
func (f CompletedFunc) Completed(ctx context.Context, b *Buffer, fromISR bool, woken *bool) {
	f(ctx, b, fromISR, woken)
}

var (
	// WakeReceiver is the default send completed strategy.
	WakeReceiver CompletionHandler = CompletedFunc(wakeReceiver)
	// WakeSender is the default receive completed strategy.
	WakeSender CompletionHandler = CompletedFunc(wakeSender)
)

func wakeReceiver(ctx context.Context, b *Buffer, fromISR bool, woken *bool) {
	b.wake(ctx, &b.waitingToReceive, fromISR, woken)
}

func wakeSender(ctx context.Context, b *Buffer, fromISR bool, woken *bool) {
	b.wake(ctx, &b.waitingToSend, fromISR, woken)
}

// wake notifies and clears the task registered in waiting. In task
// context the scheduler is suspended around it; in interrupt context
// interrupts are masked instead.
func (b *Buffer) wake(ctx context.Context, waiting **kernel.Task, fromISR bool, woken *bool) bool {
	if fromISR {
		mask := b.sched.MaskInterrupts()
		defer b.sched.UnmaskInterrupts(mask)
	} else {
		b.sched.SuspendAll(ctx)
		defer b.sched.ResumeAll(ctx)
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	task := *waiting
	if task == nil {
		return false
	}
	if fromISR {
		task.NotifyFromISR(woken)
	} else {
		task.Notify()
	}
	*waiting = nil
	glog.V(5).Infof("streambuf %d: woke %s", b.Number(), task)
	return true
}

func (b *Buffer) sendCompleted(ctx context.Context, fromISR bool, woken *bool) {
	h := b.onSendCompleted
	if h == nil {
		h = WakeReceiver
	}
	h.Completed(ctx, b, fromISR, woken)
}

func (b *Buffer) receiveCompleted(ctx context.Context, fromISR bool, woken *bool) {
	h := b.onReceiveCompleted
	if h == nil {
		h = WakeSender
	}
	h.Completed(ctx, b, fromISR, woken)
}

// SendCompletedFromISR wakes the task waiting to receive, for use by
// custom send completed handlers and interrupt handlers that write the
// buffer through other means. It returns whether a task was waiting.
func (b *Buffer) SendCompletedFromISR(woken *bool) bool {
	b.mustBeAlive("send completed")
	return b.wake(kernel.InterruptContext(), &b.waitingToReceive, true, woken)
}

// ReceiveCompletedFromISR wakes the task waiting to send. It returns
// whether a task was waiting.
func (b *Buffer) ReceiveCompletedFromISR(woken *bool) bool {
	b.mustBeAlive("receive completed")
	return b.wake(kernel.InterruptContext(), &b.waitingToSend, true, woken)
}
