package kernel

import "sync"

// Allocator provides memory for self-allocated objects.
type Allocator interface {
	// Alloc returns a zeroed block of size bytes, nil if exhausted.
	Alloc(size int) []byte
	// Free returns a block obtained from Alloc.
	Free([]byte)
}

// Heap is a bounded Allocator which only keeps accounting; the memory
// itself comes from the Go heap.
type Heap struct {
	size        int
	free        int
	minEverFree int
	allocs      int
	frees       int
	lock        sync.Mutex
}

// HeapStats is a snapshot of heap accounting.
type HeapStats struct {
	Size        int
	Free        int
	MinEverFree int
	Allocs      int
	Frees       int
}

// NewHeap creates a heap with size bytes.
func NewHeap(size int) *Heap {
	return &Heap{size: size, free: size, minEverFree: size}
}

// Alloc implements Allocator.
func (h *Heap) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	if size > h.free {
		return nil
	}
	h.free -= size
	if h.free < h.minEverFree {
		h.minEverFree = h.free
	}
	h.allocs++
	return make([]byte, size)
}

// Free implements Allocator.
func (h *Heap) Free(p []byte) {
	if cap(p) == 0 {
		return
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.free += cap(p)
	if h.free > h.size {
		panic("kernel: heap free overflow")
	}
	h.frees++
}

// FreeSize gets the bytes not allocated.
func (h *Heap) FreeSize() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.free
}

// Stats gets a snapshot of the accounting.
func (h *Heap) Stats() HeapStats {
	h.lock.Lock()
	defer h.lock.Unlock()
	return HeapStats{
		Size:        h.size,
		Free:        h.free,
		MinEverFree: h.minEverFree,
		Allocs:      h.allocs,
		Frees:       h.frees,
	}
}
