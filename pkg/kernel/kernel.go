package kernel

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Scheduler is the surface of the scheduler consumed by stream buffers.
type Scheduler interface {
	// CurrentTask gets the task running in ctx, nil outside a task.
	CurrentTask(context.Context) *Task
	// SuspendAll suspends scheduling. Calls nest within the same task, and
	// callers outside a task nest as one owner.
	SuspendAll(context.Context)
	// ResumeAll undoes one SuspendAll.
	ResumeAll(context.Context)
	// MaskInterrupts enters an interrupt-safe critical section. Calls nest.
	MaskInterrupts() InterruptMask
	// UnmaskInterrupts leaves the critical section entered by MaskInterrupts.
	UnmaskInterrupts(InterruptMask)
}

// InterruptMask is the saved interrupt state returned by MaskInterrupts.
type InterruptMask uint32

// DefaultHeapSize is the heap size of the default kernel.
const DefaultHeapSize = 1 << 20

// Kernel implements Scheduler with goroutines as tasks.
type Kernel struct {
	heap   *Heap
	nextID uint32

	schedLock sync.Mutex
	suspended atomic.Int32
	ownerLock sync.Mutex
	anonDepth int

	maskLock  sync.Mutex
	maskLevel uint32
	isrLock   sync.Mutex

	irqLock   sync.Mutex
	irqs      *queue.Queue
	irqWakeCh chan struct{}
}

var defaultKernel = New(DefaultHeapSize)

// Default gets the default kernel.
func Default() *Kernel {
	return defaultKernel
}

// New creates a Kernel with a heap of heapSize bytes.
func New(heapSize int) *Kernel {
	return &Kernel{
		heap:      NewHeap(heapSize),
		irqs:      queue.New(),
		irqWakeCh: make(chan struct{}, 1),
	}
}

// Heap gets the kernel heap.
func (k *Kernel) Heap() *Heap {
	return k.heap
}

// NewTask creates a task identity.
func (k *Kernel) NewTask(name string, priority int) *Task {
	id := atomic.AddUint32(&k.nextID, 1)
	if name == "" {
		name = "task" + strconv.FormatUint(uint64(id), 10)
	}
	return newTask(id, name, priority)
}

// TaskContext is a shortcut to create a task and a context running as it.
func (k *Kernel) TaskContext(ctx context.Context, name string) (context.Context, *Task) {
	t := k.NewTask(name, DefaultPriority)
	return WithTask(ctx, t), t
}

// CurrentTask implements Scheduler.
func (k *Kernel) CurrentTask(ctx context.Context) *Task {
	return TaskFrom(ctx)
}

// SuspendAll implements Scheduler.
// Callers outside a task share one identity: while any of them holds the
// suspension, another task-less call nests instead of blocking.
func (k *Kernel) SuspendAll(ctx context.Context) {
	t := TaskFrom(ctx)
	if t != nil {
		if t.suspendDepth > 0 {
			t.suspendDepth++
			return
		}
		k.schedLock.Lock()
		k.suspended.Add(1)
		t.suspendDepth = 1
		return
	}
	k.ownerLock.Lock()
	if k.anonDepth > 0 {
		k.anonDepth++
		k.ownerLock.Unlock()
		return
	}
	k.ownerLock.Unlock()
	k.schedLock.Lock()
	k.suspended.Add(1)
	k.ownerLock.Lock()
	k.anonDepth++
	k.ownerLock.Unlock()
}

// ResumeAll implements Scheduler.
func (k *Kernel) ResumeAll(ctx context.Context) {
	if t := TaskFrom(ctx); t != nil {
		if t.suspendDepth == 0 {
			panic("kernel: ResumeAll without SuspendAll")
		}
		if t.suspendDepth--; t.suspendDepth > 0 {
			return
		}
	} else {
		k.ownerLock.Lock()
		if k.anonDepth == 0 {
			k.ownerLock.Unlock()
			panic("kernel: ResumeAll without SuspendAll")
		}
		k.anonDepth--
		nested := k.anonDepth > 0
		k.ownerLock.Unlock()
		if nested {
			return
		}
	}
	k.suspended.Add(-1)
	k.schedLock.Unlock()
}

// Suspended indicates scheduling is currently suspended.
func (k *Kernel) Suspended() bool {
	return k.suspended.Load() > 0
}

// MaskInterrupts implements Scheduler.
// Interrupt context is a single owner, handlers being served one at a time
// by Interrupt, so masking only raises the level and never blocks.
func (k *Kernel) MaskInterrupts() InterruptMask {
	k.maskLock.Lock()
	defer k.maskLock.Unlock()
	saved := k.maskLevel
	k.maskLevel++
	return InterruptMask(saved)
}

// UnmaskInterrupts implements Scheduler.
func (k *Kernel) UnmaskInterrupts(saved InterruptMask) {
	k.maskLock.Lock()
	defer k.maskLock.Unlock()
	if k.maskLevel == 0 {
		panic("kernel: UnmaskInterrupts without MaskInterrupts")
	}
	k.maskLevel = uint32(saved)
}

// Masked gets the current interrupt mask level, 0 when unmasked.
func (k *Kernel) Masked() int {
	k.maskLock.Lock()
	defer k.maskLock.Unlock()
	return int(k.maskLevel)
}
