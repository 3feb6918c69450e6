package streambuf

// copyIn copies data into the ring starting at head and returns the index
// following the last byte written. The head cursor is not committed.
func (b *Buffer) copyIn(data []byte, head int) int {
	if len(data) >= b.length {
		violation("write", "count exceeds ring")
	}
	n := copy(b.storage[head:], data)
	if n < len(data) {
		copy(b.storage, data[n:])
	}
	head += len(data)
	if head >= b.length {
		head -= b.length
	}
	return head
}

// copyOut copies len(dest) bytes out of the ring starting at tail and
// returns the index following the last byte read. The tail cursor is not
// committed.
func (b *Buffer) copyOut(dest []byte, tail int) int {
	if len(dest) >= b.length {
		violation("read", "count exceeds ring")
	}
	n := copy(dest, b.storage[tail:])
	if n < len(dest) {
		copy(dest[n:], b.storage)
	}
	return b.advance(tail, len(dest))
}

func (b *Buffer) advance(index, count int) int {
	index += count
	if index >= b.length {
		index -= b.length
	}
	return index
}

func (b *Buffer) commitHead(head int) {
	b.lock.Lock()
	b.head.Store(int64(head))
	b.lock.Unlock()
}

func (b *Buffer) commitTail(tail int) {
	b.lock.Lock()
	b.tail.Store(int64(tail))
	b.lock.Unlock()
}

// bytesInBuffer is the occupancy. The tail may be moved by the consumer
// while the producer asks, so the tail is read again and the
// computation retried if it changed.
func (b *Buffer) bytesInBuffer() int {
	for {
		tail := b.tail.Load()
		count := b.length + int(b.head.Load()) - int(tail)
		if b.tail.Load() != tail {
			continue
		}
		if count >= b.length {
			count -= b.length
		}
		return count
	}
}

// spacesAvailable excludes the slack byte.
func (b *Buffer) spacesAvailable() int {
	return b.length - b.bytesInBuffer() - 1
}
