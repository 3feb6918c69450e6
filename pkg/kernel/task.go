package kernel

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultPriority is the priority of tasks which don't specify one.
const DefaultPriority = 1

// Task is the identity of a schedulable unit of work.
type Task struct {
	ID       uint32
	Name     string
	Priority int

	notifyCh chan struct{}
	blocked  atomic.Bool

	// only touched by the goroutine running the task.
	suspendDepth int
}

var (
	taskCtxKey = &Task{}
	isrCtxKey  = &struct{ isr bool }{true}

	isrCtx = context.WithValue(context.Background(), isrCtxKey, true)
)

func newTask(id uint32, name string, priority int) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Priority: priority,
		notifyCh: make(chan struct{}, 1),
	}
}

// WithTask returns a context running as task t.
func WithTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskCtxKey, t)
}

// TaskFrom gets the Task from context, nil if ctx is not a task context.
func TaskFrom(ctx context.Context) *Task {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(taskCtxKey).(*Task)
	return t
}

// InterruptContext is the context passed along interrupt handler paths.
func InterruptContext() context.Context {
	return isrCtx
}

// InInterrupt indicates ctx belongs to an interrupt handler.
func InInterrupt(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	isr, _ := ctx.Value(isrCtxKey).(bool)
	return isr
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// NotifyStateClear discards a pending notification and reports whether
// there was one.
func (t *Task) NotifyStateClear() bool {
	select {
	case <-t.notifyCh:
		return true
	default:
		return false
	}
}

// Notify sends a content-free notification to the task.
// Notifications don't accumulate: at most one is pending.
func (t *Task) Notify() {
	select {
	case t.notifyCh <- struct{}{}:
	default:
	}
}

// NotifyFromISR is Notify for interrupt handlers. woken is a best-effort
// hint: it is set only when the task is already parked inside Wait, so a
// task about to wait is notified without it.
func (t *Task) NotifyFromISR(woken *bool) {
	t.Notify()
	if woken != nil && t.blocked.Load() {
		*woken = true
	}
}

// Blocked indicates the task is inside Wait.
func (t *Task) Blocked() bool {
	return t.blocked.Load()
}

// Wait blocks until the task is notified, timeout elapses or ctx is done.
// A pending notification is consumed immediately. MaxDelay waits without
// a deadline. It returns true if a notification was received.
func (t *Task) Wait(ctx context.Context, timeout time.Duration) bool {
	select {
	case <-t.notifyCh:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	var expired <-chan time.Time
	if timeout != MaxDelay {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}

	t.blocked.Store(true)
	defer t.blocked.Store(false)
	select {
	case <-t.notifyCh:
		return true
	case <-expired:
		return false
	case <-done:
		return false
	}
}
