package container

import (
	"bytes"
	"sort"

	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/ser"
	"github.com/joeycumines/go-evhcore/slab"
)

// SortableList is a doubly-linked list whose nodes live in slab chains.
// Each node occupies a single dedicated slab holding (prev id, next id,
// value-chain head id) so that relinking during a push never
// reallocates the node -- its id, and therefore its neighbors' links,
// stay stable for the node's lifetime. The value itself lives in a
// separate, immutable writeChain chain referenced by the node.
type SortableList[T any] struct {
	alloc   *slab.Allocator
	codec   Codec[T]
	nilID   int
	ptrSize int

	head, tail int
	count      int
}

// NewSortableList constructs an empty SortableList.
func NewSortableList[T any](cfg Config, codec Codec[T]) (*SortableList[T], error) {
	alloc := cfg.resolve()
	slabSize, ptrSize, nilID, err := chainParams(alloc)
	if err != nil {
		return nil, err
	}
	if slabSize < 3*ptrSize {
		return nil, corerr.New(corerr.Configuration, "slab size %d too small to hold sortable-list node links (need %d)", slabSize, 3*ptrSize)
	}
	return &SortableList[T]{
		alloc: alloc, codec: codec, nilID: nilID, ptrSize: ptrSize,
		head: nilID, tail: nilID,
	}, nil
}

// Len returns the number of elements in the list.
func (l *SortableList[T]) Len() int { return l.count }

func (l *SortableList[T]) readLinks(nodeID int) (prev, next, valueHead int, err error) {
	s, err := l.alloc.Get(nodeID)
	if err != nil {
		return
	}
	data := s.Get()
	p := l.ptrSize
	prev = getChainID(data[0:p], p)
	next = getChainID(data[p:2*p], p)
	valueHead = getChainID(data[2*p:3*p], p)
	return
}

func (l *SortableList[T]) writeLinks(nodeID, prev, next, valueHead int) error {
	s, err := l.alloc.GetMut(nodeID)
	if err != nil {
		return err
	}
	data := s.GetMut()
	p := l.ptrSize
	putChainID(data[0:p], p, prev)
	putChainID(data[p:2*p], p, next)
	putChainID(data[2*p:3*p], p, valueHead)
	return nil
}

func (l *SortableList[T]) newNode(prev, next int, v T) (int, error) {
	var buf bytes.Buffer
	w := ser.NewWriter(&buf)
	l.codec.Write(w, v)
	if err := w.Err(); err != nil {
		return 0, err
	}
	valueHead, err := writeChain(l.alloc, buf.Bytes())
	if err != nil {
		return 0, err
	}

	s, err := l.alloc.Allocate()
	if err != nil {
		_ = freeChain(l.alloc, valueHead)
		return 0, err
	}
	if err := l.writeLinks(s.ID(), prev, next, valueHead); err != nil {
		return 0, err
	}
	return s.ID(), nil
}

// PushBack appends v to the end of the list.
func (l *SortableList[T]) PushBack(v T) error {
	nodeID, err := l.newNode(l.tail, l.nilID, v)
	if err != nil {
		return err
	}
	if l.tail != l.nilID {
		prevPrev, _, prevValue, err := l.readLinks(l.tail)
		if err != nil {
			return err
		}
		if err := l.writeLinks(l.tail, prevPrev, nodeID, prevValue); err != nil {
			return err
		}
	} else {
		l.head = nodeID
	}
	l.tail = nodeID
	l.count++
	return nil
}

// PushFront prepends v to the start of the list.
func (l *SortableList[T]) PushFront(v T) error {
	nodeID, err := l.newNode(l.nilID, l.head, v)
	if err != nil {
		return err
	}
	if l.head != l.nilID {
		_, headNext, headValue, err := l.readLinks(l.head)
		if err != nil {
			return err
		}
		if err := l.writeLinks(l.head, nodeID, headNext, headValue); err != nil {
			return err
		}
	} else {
		l.tail = nodeID
	}
	l.head = nodeID
	l.count++
	return nil
}

func (l *SortableList[T]) valueAt(nodeID int) (T, error) {
	var zero T
	_, _, valueHead, err := l.readLinks(nodeID)
	if err != nil {
		return zero, err
	}
	raw, err := readChain(l.alloc, valueHead)
	if err != nil {
		return zero, err
	}
	r := ser.NewReader(bytes.NewReader(raw))
	v := l.codec.Read(r)
	if err := r.Err(); err != nil {
		return zero, err
	}
	return v, nil
}

// ToSlice materializes the list, front to back.
func (l *SortableList[T]) ToSlice() ([]T, error) {
	out := make([]T, 0, l.count)
	for id := l.head; id != l.nilID; {
		v, err := l.valueAt(id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		_, next, _, err := l.readLinks(id)
		if err != nil {
			return nil, err
		}
		id = next
	}
	return out, nil
}

// Sort rebuilds the list in order according to less, preserving the
// relative order of elements less considers equal.
func (l *SortableList[T]) Sort(less func(a, b T) bool) error {
	items, err := l.ToSlice()
	if err != nil {
		return err
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	return l.rebuild(items)
}

// SortUnstable is like Sort but does not guarantee a stable ordering
// among elements less considers equal, matching the original
// implementation's sort_unstable.
func (l *SortableList[T]) SortUnstable(less func(a, b T) bool) error {
	items, err := l.ToSlice()
	if err != nil {
		return err
	}
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })
	return l.rebuild(items)
}

func (l *SortableList[T]) freeAll() error {
	for id := l.head; id != l.nilID; {
		_, next, valueHead, err := l.readLinks(id)
		if err != nil {
			return err
		}
		if err := freeChain(l.alloc, valueHead); err != nil {
			return err
		}
		if err := l.alloc.Free(id); err != nil {
			return err
		}
		id = next
	}
	l.head, l.tail, l.count = l.nilID, l.nilID, 0
	return nil
}

func (l *SortableList[T]) rebuild(items []T) error {
	if err := l.freeAll(); err != nil {
		return err
	}
	for _, v := range items {
		if err := l.PushBack(v); err != nil {
			return err
		}
	}
	return nil
}

// Close frees every node and value chain. The SortableList must not be
// used afterwards.
func (l *SortableList[T]) Close() error { return l.freeAll() }
