package kernel

import (
	"context"
	"runtime"

	"github.com/golang/glog"
)

// ISR is an interrupt handler. It runs to completion and must not block.
// woken is set when the handler readied a task which should run next.
type ISR interface {
	ServeIRQ(woken *bool)
}

// ISRFunc is func type of ISR.
type ISRFunc func(woken *bool)

// ServeIRQ implements ISR.
func (f ISRFunc) ServeIRQ(woken *bool) {
	f(woken)
}

// Raise queues an interrupt to be served by Run.
func (k *Kernel) Raise(isr ISR) {
	k.irqLock.Lock()
	k.irqs.Add(isr)
	k.irqLock.Unlock()
	select {
	case k.irqWakeCh <- struct{}{}:
	default:
	}
}

// Pending gets the number of interrupts raised but not yet served.
func (k *Kernel) Pending() int {
	k.irqLock.Lock()
	defer k.irqLock.Unlock()
	return k.irqs.Length()
}

// Interrupt serves an interrupt immediately on the calling goroutine and
// reports whether the handler woke a task. Handlers never overlap.
func (k *Kernel) Interrupt(isr ISR) bool {
	var woken bool
	k.isrLock.Lock()
	isr.ServeIRQ(&woken)
	k.isrLock.Unlock()
	if woken {
		runtime.Gosched()
	}
	return woken
}

// Run implements Runnable and serves raised interrupts one at a time.
func (k *Kernel) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-k.irqWakeCh:
			k.serveIRQs()
		}
	}
}

// Name implements Named.
func (k *Kernel) Name() string {
	return "irq"
}

func (k *Kernel) serveIRQs() {
	for {
		k.irqLock.Lock()
		if k.irqs.Length() == 0 {
			k.irqLock.Unlock()
			return
		}
		isr := k.irqs.Remove().(ISR)
		k.irqLock.Unlock()
		if k.Interrupt(isr) {
			glog.V(4).Info("yield from ISR")
		}
	}
}
