// Package streambuf provides stream and message buffers between exactly
// one producer and one consumer, each of which may be a task or an
// interrupt handler.
package streambuf

// A stream buffer carries bytes without unit boundaries. A message buffer
// carries discrete messages, each stored as a length prefix followed by
// the payload, and always delivers whole messages.
//
// The producer side owns the head cursor and the consumer side owns the
// tail cursor, so the copy paths run without a lock. A short critical
// section guards registration of the single waiting producer and the
// single waiting consumer and each cursor commit. Occupancy queries read
// both cursors with a retry loop instead of locking.
//
// Task context entry points (Send, Receive) may block up to a timeout.
// Interrupt context entry points (SendFromISR, ReceiveFromISR) never
// block and report through woken whether a waiting task was readied.
//
// Multiple producers or multiple consumers must be serialized by the
// caller. Registering a second waiting task on the same side panics.
