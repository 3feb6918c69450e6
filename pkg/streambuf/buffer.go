package streambuf

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"golang.org/x/sys/cpu"

	"github.com/robotalks/streambuf/pkg/kernel"
)

const (
	flagMessage uint8 = 1 << iota
	flagStatic
)

// storage is filled with this pattern on creation and reset so stale
// bytes stand out when debugging.
const debugFill = 0x55

// Buffer is a single producer, single consumer byte ring.
type Buffer struct {
	// head is written only by the producer.
	head atomic.Int64
	_    cpu.CacheLinePad
	// tail is written only by the consumer.
	tail atomic.Int64
	_    cpu.CacheLinePad

	length       int
	triggerLevel atomic.Int64
	prefixSize   int
	flags        uint8
	storage      []byte
	number       atomic.Uint32

	// lock guards the waiting task fields and cursor commits.
	lock             sync.Mutex
	waitingToReceive *kernel.Task
	waitingToSend    *kernel.Task

	sched              kernel.Scheduler
	alloc              kernel.Allocator
	static             *StaticBuffer
	onSendCompleted    CompletionHandler
	onReceiveCompleted CompletionHandler
}

// StaticBuffer is caller provided memory holding a buffer descriptor.
type StaticBuffer struct {
	buf Buffer
}

// State is a snapshot of a buffer.
type State struct {
	Number           uint32
	Mode             Mode
	Capacity         int
	TriggerLevel     int
	Head             int
	Tail             int
	Used             int
	Free             int
	Static           bool
	WaitingToSend    string
	WaitingToReceive string
}

// New creates a buffer with storage taken from the configured allocator.
func (c *Config) New() (*Buffer, error) {
	prefixSize, triggerLevel, err := c.validate()
	if err != nil {
		return nil, err
	}
	alloc := c.allocator()
	storage := alloc.Alloc(c.Size)
	if storage == nil {
		return nil, ErrNoMemory
	}
	b := &Buffer{alloc: alloc}
	c.init(b, storage, prefixSize, triggerLevel, 0)
	return b, nil
}

// NewStatic creates a buffer in caller provided memory. Only the first
// Size bytes of storage are used.
func (c *Config) NewStatic(storage []byte, sb *StaticBuffer) (*Buffer, error) {
	if storage == nil || sb == nil {
		return nil, ErrNilStorage
	}
	if len(storage) < c.Size {
		return nil, &ConfigError{Field: "storage", Value: len(storage), Err: ErrStorageTooSmall}
	}
	prefixSize, triggerLevel, err := c.validate()
	if err != nil {
		return nil, err
	}
	b := &sb.buf
	c.init(b, storage[:c.Size:c.Size], prefixSize, triggerLevel, flagStatic)
	b.static = sb
	return b, nil
}

func (c *Config) init(b *Buffer, storage []byte, prefixSize, triggerLevel int, flags uint8) {
	fill(storage)
	b.storage = storage
	b.length = len(storage)
	b.prefixSize = prefixSize
	b.triggerLevel.Store(int64(triggerLevel))
	b.flags = flags
	if c.Mode == ModeMessage {
		b.flags |= flagMessage
	}
	b.sched = c.scheduler()
	b.onSendCompleted = c.OnSendCompleted
	b.onReceiveCompleted = c.OnReceiveCompleted
	glog.V(3).Infof("streambuf: created %s buffer size=%d trigger=%d static=%v",
		c.Mode, b.length, triggerLevel, flags&flagStatic != 0)
}

func fill(p []byte) {
	for i := range p {
		p[i] = debugFill
	}
}

func (b *Buffer) mustBeAlive(op string) {
	if b == nil || b.length == 0 {
		violation(op, "buffer not initialized or deleted")
	}
}

// Mode returns the buffer mode.
func (b *Buffer) Mode() Mode {
	if b.isMessage() {
		return ModeMessage
	}
	return ModeStream
}

// Capacity returns the storage length. The buffer holds at most
// Capacity()-1 bytes.
func (b *Buffer) Capacity() int {
	return b.length
}

// TriggerLevel returns the current trigger level.
func (b *Buffer) TriggerLevel() int {
	return int(b.triggerLevel.Load())
}

// Number returns the tag set by SetNumber.
func (b *Buffer) Number() uint32 {
	return b.number.Load()
}

// SetNumber tags the buffer for tracing.
func (b *Buffer) SetNumber(n uint32) {
	b.number.Store(n)
}

// BytesAvailable returns the bytes stored, including message framing.
func (b *Buffer) BytesAvailable() int {
	b.mustBeAlive("bytes available")
	return b.bytesInBuffer()
}

// SpacesAvailable returns the bytes that can be written, including
// message framing.
func (b *Buffer) SpacesAvailable() int {
	b.mustBeAlive("spaces available")
	return b.spacesAvailable()
}

// IsEmpty reports whether the buffer holds no data.
func (b *Buffer) IsEmpty() bool {
	b.mustBeAlive("is empty")
	return b.head.Load() == b.tail.Load()
}

// IsFull reports whether the next send can't make progress. In message
// mode a buffer with no room for a prefix and one payload byte is full.
func (b *Buffer) IsFull() bool {
	b.mustBeAlive("is full")
	return b.spacesAvailable() <= b.FramingOverhead()
}

// Reset empties the buffer. It fails with ErrBusy if a task is blocked
// sending to or receiving from the buffer.
func (b *Buffer) Reset() error {
	b.mustBeAlive("reset")
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.waitingToReceive != nil || b.waitingToSend != nil {
		return ErrBusy
	}
	b.head.Store(0)
	b.tail.Store(0)
	fill(b.storage)
	glog.V(3).Infof("streambuf %d: reset", b.Number())
	return nil
}

// SetTriggerLevel changes the trigger level. 0 is treated as 1.
func (b *Buffer) SetTriggerLevel(level int) error {
	b.mustBeAlive("set trigger level")
	if level == 0 {
		level = 1
	}
	if level < 0 || level >= b.length {
		return &ConfigError{Field: "trigger level", Value: level, Err: ErrInvalidTriggerLevel}
	}
	b.triggerLevel.Store(int64(level))
	return nil
}

// StaticBuffers returns the caller provided memory of a buffer created by
// NewStatic.
func (b *Buffer) StaticBuffers() (storage []byte, sb *StaticBuffer, ok bool) {
	b.mustBeAlive("static buffers")
	if b.flags&flagStatic == 0 {
		return nil, nil, false
	}
	return b.storage, b.static, true
}

// Delete releases the buffer. Dynamic storage goes back to the allocator;
// caller provided descriptor memory is zeroed. The buffer must not be
// used afterwards.
func (b *Buffer) Delete() {
	b.mustBeAlive("delete")
	if b.flags&flagStatic != 0 {
		sb := b.static
		*sb = StaticBuffer{}
		return
	}
	storage, alloc := b.storage, b.alloc
	*b = Buffer{}
	alloc.Free(storage)
}

// State returns a snapshot of the buffer.
func (b *Buffer) State() State {
	b.mustBeAlive("state")
	s := State{
		Number:       b.Number(),
		Mode:         b.Mode(),
		Capacity:     b.length,
		TriggerLevel: b.TriggerLevel(),
		Static:       b.flags&flagStatic != 0,
	}
	b.lock.Lock()
	s.Head = int(b.head.Load())
	s.Tail = int(b.tail.Load())
	if t := b.waitingToSend; t != nil {
		s.WaitingToSend = t.String()
	}
	if t := b.waitingToReceive; t != nil {
		s.WaitingToReceive = t.String()
	}
	b.lock.Unlock()
	s.Used = (b.length + s.Head - s.Tail) % b.length
	s.Free = b.length - s.Used - 1
	return s
}

// WaitingToSend returns the task blocked sending, if any.
func (b *Buffer) WaitingToSend() *kernel.Task {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.waitingToSend
}

// WaitingToReceive returns the task blocked receiving, if any.
func (b *Buffer) WaitingToReceive() *kernel.Task {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.waitingToReceive
}
