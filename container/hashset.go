package container

import "github.com/joeycumines/go-evhcore/ser"

// HashsetConfig configures a Hashset.
type HashsetConfig[K comparable] struct {
	Container     Config
	MaxEntries    int
	MaxLoadFactor float64
	Hash          func(K) uint64
	KeyCodec      Codec[K]
}

// Hashset is a Hashtable with an empty value, used as a set of keys.
type Hashset[K comparable] struct {
	table *Hashtable[K, struct{}]
}

// NewHashset constructs a Hashset per cfg.
func NewHashset[K comparable](cfg HashsetConfig[K]) (*Hashset[K], error) {
	table, err := NewHashtable(HashtableConfig[K, struct{}]{
		Container:     cfg.Container,
		MaxEntries:    cfg.MaxEntries,
		MaxLoadFactor: cfg.MaxLoadFactor,
		Hash:          cfg.Hash,
		KeyCodec:      cfg.KeyCodec,
		ValueCodec: Codec[struct{}]{
			Write: func(w *ser.Writer, v struct{}) {},
			Read:  func(r *ser.Reader) struct{} { return struct{}{} },
		},
	})
	if err != nil {
		return nil, err
	}
	return &Hashset[K]{table: table}, nil
}

// Len returns the number of keys in the set.
func (s *Hashset[K]) Len() int { return s.table.Len() }

// Add inserts k into the set, failing with CapacityExceeded if the set
// is at MaxEntries.
func (s *Hashset[K]) Add(k K) error { return s.table.Put(k, struct{}{}) }

// Contains reports whether k is a member of the set.
func (s *Hashset[K]) Contains(k K) (bool, error) {
	_, ok, err := s.table.Get(k)
	return ok, err
}

// Remove deletes k from the set, returning whether it was present.
func (s *Hashset[K]) Remove(k K) (bool, error) { return s.table.Remove(k) }

// Close frees every member's chain. The Hashset must not be used
// afterwards.
func (s *Hashset[K]) Close() error { return s.table.Close() }
