// Package kernel provides the scheduler collaborator used by stream buffers.
package kernel

// The kernel here is a goroutine-backed stand-in for a cooperative RTOS
// scheduler. A task is an identity carried in context.Context, blocking
// is a wait on the task's one-slot notification state, and interrupt
// handlers are functions served one at a time to completion by the
// IRQ dispatcher.
//
// Only the narrow surface needed by stream buffers is provided:
// scheduler suspension, interrupt masking, task notifications,
// timeouts against the monotonic clock and a bounded heap.
