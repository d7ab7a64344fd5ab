package container

import (
	"bytes"

	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/ser"
	"github.com/joeycumines/go-evhcore/slab"
)

type bucketState uint8

const (
	bucketEmpty bucketState = iota
	bucketTombstone
	bucketOccupied
)

// defaultMaxLoadFactor matches the original implementation's default.
const defaultMaxLoadFactor = 0.7

// HashtableConfig configures a Hashtable.
type HashtableConfig[K comparable, V any] struct {
	Container Config
	// MaxEntries is the number of live entries the table must support
	// before reporting CapacityExceeded.
	MaxEntries int
	// MaxLoadFactor bounds live-entries/bucket-count; defaults to 0.7.
	MaxLoadFactor float64
	// Hash computes a key's hash. Go has no built-in generic hash over
	// comparable, so callers must supply one (e.g. maphash-backed).
	Hash       func(K) uint64
	KeyCodec   Codec[K]
	ValueCodec Codec[V]
}

// Hashtable is an open-addressed hash table with linear probing over a
// bucket array sized from MaxEntries/MaxLoadFactor. Each occupied bucket
// holds the head id of a writeChain chain containing the serialized
// key followed by the serialized value.
type Hashtable[K comparable, V any] struct {
	alloc      *slab.Allocator
	hash       func(K) uint64
	keyCodec   Codec[K]
	valueCodec Codec[V]

	buckets []int
	state   []bucketState

	maxEntries int
	count      int
}

// NewHashtable constructs a Hashtable per cfg.
func NewHashtable[K comparable, V any](cfg HashtableConfig[K, V]) (*Hashtable[K, V], error) {
	if cfg.MaxEntries <= 0 {
		return nil, corerr.New(corerr.IllegalArgument, "max entries must be > 0, got %d", cfg.MaxEntries)
	}
	if cfg.Hash == nil {
		return nil, corerr.New(corerr.IllegalArgument, "hash function must not be nil")
	}
	loadFactor := cfg.MaxLoadFactor
	if loadFactor <= 0 {
		loadFactor = defaultMaxLoadFactor
	}
	capacity := int(float64(cfg.MaxEntries)/loadFactor) + 1
	if capacity <= cfg.MaxEntries {
		capacity = cfg.MaxEntries + 1
	}

	alloc := cfg.Container.resolve()
	nilID, err := alloc.NilID()
	if err != nil {
		return nil, err
	}

	buckets := make([]int, capacity)
	for i := range buckets {
		buckets[i] = nilID
	}

	return &Hashtable[K, V]{
		alloc:      alloc,
		hash:       cfg.Hash,
		keyCodec:   cfg.KeyCodec,
		valueCodec: cfg.ValueCodec,
		buckets:    buckets,
		state:      make([]bucketState, capacity),
		maxEntries: cfg.MaxEntries,
	}, nil
}

// Len returns the number of live entries.
func (h *Hashtable[K, V]) Len() int { return h.count }

func (h *Hashtable[K, V]) readKeyAt(idx int) (K, error) {
	var zero K
	raw, err := readChain(h.alloc, h.buckets[idx])
	if err != nil {
		return zero, err
	}
	r := ser.NewReader(bytes.NewReader(raw))
	k := h.keyCodec.Read(r)
	if err := r.Err(); err != nil {
		return zero, err
	}
	return k, nil
}

func (h *Hashtable[K, V]) readEntryAt(idx int) (K, V, error) {
	var zk K
	var zv V
	raw, err := readChain(h.alloc, h.buckets[idx])
	if err != nil {
		return zk, zv, err
	}
	r := ser.NewReader(bytes.NewReader(raw))
	k := h.keyCodec.Read(r)
	v := h.valueCodec.Read(r)
	if err := r.Err(); err != nil {
		return zk, zv, err
	}
	return k, v, nil
}

func (h *Hashtable[K, V]) encodeEntry(k K, v V) ([]byte, error) {
	var buf bytes.Buffer
	w := ser.NewWriter(&buf)
	h.keyCodec.Write(w, k)
	h.valueCodec.Write(w, v)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Put inserts or replaces the value for k, failing with CapacityExceeded
// once MaxEntries live entries are stored or the table's probe sequence
// is exhausted.
func (h *Hashtable[K, V]) Put(k K, v V) error {
	idx := int(h.hash(k) % uint64(len(h.buckets)))
	firstTombstone := -1

	for i := 0; i < len(h.buckets); i++ {
		probe := (idx + i) % len(h.buckets)
		switch h.state[probe] {
		case bucketEmpty:
			if h.count >= h.maxEntries {
				return corerr.New(corerr.CapacityExceeded, "hashtable at max entries (%d)", h.maxEntries)
			}
			target := probe
			if firstTombstone >= 0 {
				target = firstTombstone
			}
			return h.insertAt(target, k, v)
		case bucketTombstone:
			if firstTombstone < 0 {
				firstTombstone = probe
			}
		case bucketOccupied:
			existing, err := h.readKeyAt(probe)
			if err != nil {
				return err
			}
			if existing == k {
				return h.replaceAt(probe, k, v)
			}
		}
	}

	if firstTombstone >= 0 && h.count < h.maxEntries {
		return h.insertAt(firstTombstone, k, v)
	}
	return corerr.New(corerr.CapacityExceeded, "hashtable full")
}

func (h *Hashtable[K, V]) insertAt(idx int, k K, v V) error {
	payload, err := h.encodeEntry(k, v)
	if err != nil {
		return err
	}
	head, err := writeChain(h.alloc, payload)
	if err != nil {
		return err
	}
	h.buckets[idx] = head
	h.state[idx] = bucketOccupied
	h.count++
	return nil
}

func (h *Hashtable[K, V]) replaceAt(idx int, k K, v V) error {
	payload, err := h.encodeEntry(k, v)
	if err != nil {
		return err
	}
	head, err := writeChain(h.alloc, payload)
	if err != nil {
		return err
	}
	old := h.buckets[idx]
	h.buckets[idx] = head
	return freeChain(h.alloc, old)
}

// Get returns the value stored for k, and whether it was found.
func (h *Hashtable[K, V]) Get(k K) (V, bool, error) {
	var zero V
	idx := int(h.hash(k) % uint64(len(h.buckets)))
	for i := 0; i < len(h.buckets); i++ {
		probe := (idx + i) % len(h.buckets)
		switch h.state[probe] {
		case bucketEmpty:
			return zero, false, nil
		case bucketOccupied:
			existing, v, err := h.readEntryAt(probe)
			if err != nil {
				return zero, false, err
			}
			if existing == k {
				return v, true, nil
			}
		}
	}
	return zero, false, nil
}

// Remove deletes k's entry, if present, returning whether it was found.
// The freed bucket becomes a tombstone so later probes for other keys
// that passed through it still terminate correctly.
func (h *Hashtable[K, V]) Remove(k K) (bool, error) {
	idx := int(h.hash(k) % uint64(len(h.buckets)))
	for i := 0; i < len(h.buckets); i++ {
		probe := (idx + i) % len(h.buckets)
		switch h.state[probe] {
		case bucketEmpty:
			return false, nil
		case bucketOccupied:
			existing, err := h.readKeyAt(probe)
			if err != nil {
				return false, err
			}
			if existing == k {
				if err := freeChain(h.alloc, h.buckets[probe]); err != nil {
					return false, err
				}
				h.state[probe] = bucketTombstone
				h.count--
				return true, nil
			}
		}
	}
	return false, nil
}

// Close frees every live entry's chain. The Hashtable must not be used
// afterwards.
func (h *Hashtable[K, V]) Close() error {
	for i, st := range h.state {
		if st == bucketOccupied {
			if err := freeChain(h.alloc, h.buckets[i]); err != nil {
				return err
			}
			h.state[i] = bucketEmpty
		}
	}
	h.count = 0
	return nil
}
