package queue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// New creates new queue of fixed capacity.
func New[T any](capacity uint64) *Queue[T] {
	if capacity == 0 {
		panic("queue capacity must be positive")
	}

	free := semaphore.NewWeighted(int64(capacity))
	filled := semaphore.NewWeighted(int64(capacity))
	// Queue starts empty, so all the filled slots are taken.
	if !filled.TryAcquire(int64(capacity)) {
		panic("fresh semaphore is not available")
	}

	return &Queue[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		free:     free,
		filled:   filled,
	}
}

// Queue is the bounded FIFO queue safe for concurrent use. Insert blocks while queue is full, Remove blocks while
// queue is empty.
type Queue[T any] struct {
	items    []T
	capacity uint64

	// free counts slots available for insertion, filled counts items available for removal.
	free, filled *semaphore.Weighted

	mu             sync.Mutex
	getPtr, putPtr uint64
	count          uint64
}

// Insert inserts item, waiting for free slot.
func (q *Queue[T]) Insert(ctx context.Context, item T) error {
	if err := q.free.Acquire(ctx, 1); err != nil {
		return errors.WithStack(err)
	}
	q.put(item)
	return nil
}

// TryInsert inserts item if there is a free slot. It never blocks.
func (q *Queue[T]) TryInsert(item T) bool {
	if !q.free.TryAcquire(1) {
		return false
	}
	q.put(item)
	return true
}

// Remove removes the oldest item, waiting for one to be available.
func (q *Queue[T]) Remove(ctx context.Context) (T, error) {
	if err := q.filled.Acquire(ctx, 1); err != nil {
		var t T
		return t, errors.WithStack(err)
	}
	return q.get(), nil
}

// TryRemove removes the oldest item if there is one. It never blocks.
func (q *Queue[T]) TryRemove() (T, bool) {
	if !q.filled.TryAcquire(1) {
		var t T
		return t, false
	}
	return q.get(), true
}

// Count returns the number of items ready to be removed.
func (q *Queue[T]) Count() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.count
}

// Capacity returns the capacity of the queue.
func (q *Queue[T]) Capacity() uint64 {
	return q.capacity
}

func (q *Queue[T]) put(item T) {
	q.mu.Lock()
	q.items[q.putPtr] = item
	q.putPtr++
	if q.putPtr == q.capacity {
		q.putPtr = 0
	}
	q.count++
	q.mu.Unlock()

	q.filled.Release(1)
}

func (q *Queue[T]) get() T {
	q.mu.Lock()
	item := q.items[q.getPtr]
	var t T
	q.items[q.getPtr] = t
	q.getPtr++
	if q.getPtr == q.capacity {
		q.getPtr = 0
	}
	q.count--
	q.mu.Unlock()

	q.free.Release(1)
	return item
}
