package container

import "github.com/joeycumines/go-evhcore/corerr"

// Stack is a bounded LIFO over a fixed-capacity Array.
type Stack[T any] struct {
	arr *Array[T]
	r   *ring
}

// NewStack constructs a Stack with the given fixed capacity.
func NewStack[T any](cfg Config, capacity int, codec Codec[T]) (*Stack[T], error) {
	arr, err := NewArray[T](cfg, capacity, codec)
	if err != nil {
		return nil, err
	}
	return &Stack[T]{arr: arr, r: newRing(capacity)}, nil
}

// Cap returns the stack's fixed capacity.
func (s *Stack[T]) Cap() int { return s.r.cap() }

// Len returns the number of elements currently on the stack.
func (s *Stack[T]) Len() int { return s.r.len() }

// Push pushes v onto the stack, failing with CapacityExceeded if full.
func (s *Stack[T]) Push(v T) error {
	if s.r.full() {
		return corerr.New(corerr.CapacityExceeded, "stack full (capacity %d)", s.r.cap())
	}
	return s.arr.Set(s.r.pushTop(), v)
}

// Pop pops and returns the most-recently-pushed element, failing with
// IllegalState if the stack is empty.
func (s *Stack[T]) Pop() (T, error) {
	var zero T
	if s.r.empty() {
		return zero, corerr.New(corerr.IllegalState, "stack empty")
	}
	i := s.r.popTop()
	v, err := s.arr.Get(i)
	if err != nil {
		return zero, err
	}
	if err := s.arr.Clear(i); err != nil {
		return zero, err
	}
	return v, nil
}

// Close frees all backing storage. The Stack must not be used afterwards.
func (s *Stack[T]) Close() error { return s.arr.Close() }
