package container

import "github.com/joeycumines/go-evhcore/corerr"

// ArrayList is a fixed-capacity ring buffer of serialized Ts. PushBack
// fails with CapacityExceeded once the list is full.
type ArrayList[T any] struct {
	arr *Array[T]
	r   *ring
}

// NewArrayList constructs an ArrayList with the given fixed capacity.
func NewArrayList[T any](cfg Config, capacity int, codec Codec[T]) (*ArrayList[T], error) {
	arr, err := NewArray[T](cfg, capacity, codec)
	if err != nil {
		return nil, err
	}
	return &ArrayList[T]{arr: arr, r: newRing(capacity)}, nil
}

// Cap returns the list's fixed capacity.
func (l *ArrayList[T]) Cap() int { return l.r.cap() }

// Len returns the number of elements currently stored.
func (l *ArrayList[T]) Len() int { return l.r.len() }

// PushBack appends v, failing with CapacityExceeded if the list is full.
func (l *ArrayList[T]) PushBack(v T) error {
	if l.r.full() {
		return corerr.New(corerr.CapacityExceeded, "array list full (capacity %d)", l.r.cap())
	}
	return l.arr.Set(l.r.pushBack(), v)
}

// PopFront removes and returns the oldest element, failing with
// IllegalState if the list is empty.
func (l *ArrayList[T]) PopFront() (T, error) {
	var zero T
	if l.r.empty() {
		return zero, corerr.New(corerr.IllegalState, "array list empty")
	}
	i := l.r.popFront()
	v, err := l.arr.Get(i)
	if err != nil {
		return zero, err
	}
	if err := l.arr.Clear(i); err != nil {
		return zero, err
	}
	return v, nil
}

// At returns the i'th element from the front (0-based) without removing
// it.
func (l *ArrayList[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= l.r.len() {
		return zero, corerr.New(corerr.ArrayIndexOutOfBounds, "index %d, length %d", i, l.r.len())
	}
	return l.arr.Get(l.r.at(i))
}

// Close frees all backing storage. The ArrayList must not be used
// afterwards.
func (l *ArrayList[T]) Close() error { return l.arr.Close() }
