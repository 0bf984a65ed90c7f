package alloc

func newRing[T any](capacity uint64) *ring[T] {
	return &ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// ring is the FIFO of fixed capacity. It is not safe for concurrent use.
type ring[T any] struct {
	items []T

	capacity       uint64
	getPtr, putPtr uint64
	count          uint64
}

func (r *ring[T]) Get() (T, bool) {
	if r.count == 0 {
		var t T
		return t, false
	}
	item := r.items[r.getPtr]
	r.getPtr++
	if r.getPtr == r.capacity {
		r.getPtr = 0
	}
	r.count--
	return item, true
}

func (r *ring[T]) Put(item T) {
	if r.count == r.capacity {
		// Putting more than was taken means the same item is returned twice.
		panic("no space left in the ring")
	}
	r.items[r.putPtr] = item
	r.putPtr++
	if r.putPtr == r.capacity {
		r.putPtr = 0
	}
	r.count++
}

func (r *ring[T]) Count() uint64 {
	return r.count
}
