package container

import (
	"bytes"

	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/ser"
	"github.com/joeycumines/go-evhcore/slab"
)

// Array is a fixed-length vector of serialized Ts. An unset slot reads
// back as T's zero value.
type Array[T any] struct {
	alloc *slab.Allocator
	codec Codec[T]
	ids   []int
	nilID int
}

// NewArray constructs an Array of the given fixed length.
func NewArray[T any](cfg Config, length int, codec Codec[T]) (*Array[T], error) {
	if length <= 0 {
		return nil, corerr.New(corerr.IllegalArgument, "array length must be > 0, got %d", length)
	}
	alloc := cfg.resolve()
	nilID, err := alloc.NilID()
	if err != nil {
		return nil, err
	}
	ids := make([]int, length)
	for i := range ids {
		ids[i] = nilID
	}
	return &Array[T]{alloc: alloc, codec: codec, ids: ids, nilID: nilID}, nil
}

// Len returns the array's fixed length.
func (a *Array[T]) Len() int { return len(a.ids) }

// Set serializes v into slot i, replacing and freeing any chain already
// occupying that slot.
func (a *Array[T]) Set(i int, v T) error {
	if i < 0 || i >= len(a.ids) {
		return corerr.New(corerr.ArrayIndexOutOfBounds, "index %d, length %d", i, len(a.ids))
	}

	var buf bytes.Buffer
	w := ser.NewWriter(&buf)
	a.codec.Write(w, v)
	if err := w.Err(); err != nil {
		return err
	}

	head, err := writeChain(a.alloc, buf.Bytes())
	if err != nil {
		return err
	}

	if a.ids[i] != a.nilID {
		if err := freeChain(a.alloc, a.ids[i]); err != nil {
			return err
		}
	}
	a.ids[i] = head
	return nil
}

// Get deserializes and returns the value at slot i, or T's zero value if
// the slot was never Set.
func (a *Array[T]) Get(i int) (T, error) {
	var zero T
	if i < 0 || i >= len(a.ids) {
		return zero, corerr.New(corerr.ArrayIndexOutOfBounds, "index %d, length %d", i, len(a.ids))
	}
	if a.ids[i] == a.nilID {
		return zero, nil
	}

	raw, err := readChain(a.alloc, a.ids[i])
	if err != nil {
		return zero, err
	}
	r := ser.NewReader(bytes.NewReader(raw))
	v := a.codec.Read(r)
	if err := r.Err(); err != nil {
		return zero, err
	}
	return v, nil
}

// Clear frees slot i's chain, if any, resetting it to empty.
func (a *Array[T]) Clear(i int) error {
	if i < 0 || i >= len(a.ids) {
		return corerr.New(corerr.ArrayIndexOutOfBounds, "index %d, length %d", i, len(a.ids))
	}
	if a.ids[i] == a.nilID {
		return nil
	}
	if err := freeChain(a.alloc, a.ids[i]); err != nil {
		return err
	}
	a.ids[i] = a.nilID
	return nil
}

// Close frees every occupied slot's chain. The Array must not be used
// afterwards.
func (a *Array[T]) Close() error {
	for i, id := range a.ids {
		if id != a.nilID {
			if err := freeChain(a.alloc, id); err != nil {
				return err
			}
			a.ids[i] = a.nilID
		}
	}
	return nil
}
