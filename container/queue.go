package container

import "github.com/joeycumines/go-evhcore/corerr"

// Queue is a bounded FIFO over a fixed-capacity Array.
type Queue[T any] struct {
	arr *Array[T]
	r   *ring
}

// NewQueue constructs a Queue with the given fixed capacity.
func NewQueue[T any](cfg Config, capacity int, codec Codec[T]) (*Queue[T], error) {
	arr, err := NewArray[T](cfg, capacity, codec)
	if err != nil {
		return nil, err
	}
	return &Queue[T]{arr: arr, r: newRing(capacity)}, nil
}

// Cap returns the queue's fixed capacity.
func (q *Queue[T]) Cap() int { return q.r.cap() }

// Len returns the number of elements currently queued.
func (q *Queue[T]) Len() int { return q.r.len() }

// Push enqueues v, failing with CapacityExceeded if the queue is full.
func (q *Queue[T]) Push(v T) error {
	if q.r.full() {
		return corerr.New(corerr.CapacityExceeded, "queue full (capacity %d)", q.r.cap())
	}
	return q.arr.Set(q.r.pushBack(), v)
}

// Pop dequeues and returns the oldest element, failing with IllegalState
// if the queue is empty.
func (q *Queue[T]) Pop() (T, error) {
	var zero T
	if q.r.empty() {
		return zero, corerr.New(corerr.IllegalState, "queue empty")
	}
	i := q.r.popFront()
	v, err := q.arr.Get(i)
	if err != nil {
		return zero, err
	}
	if err := q.arr.Clear(i); err != nil {
		return zero, err
	}
	return v, nil
}

// Close frees all backing storage. The Queue must not be used afterwards.
func (q *Queue[T]) Close() error { return q.arr.Close() }
