// Copyright (c) 2023-2024, The BitcoinMW Developers
// Some code and concepts from:
// * Grin: https://github.com/mimblewimble/grin
// * Arti: https://gitlab.torproject.org/tpo/core/arti
// * BitcoinMW: https://github.com/bitcoinmw/bitcoinmw
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package slab implements a fixed-capacity block allocator with an
// intrusive free list. It is the single backing store for every
// serializable in-memory container in package container.
package slab

import (
	"github.com/joeycumines/go-evhcore/corerr"
)

// Config configures an Allocator.
type Config struct {
	// SlabSize is the number of usable bytes per slab. Must be >= 8.
	SlabSize int
	// SlabCount is the total number of slabs. Must be > 0.
	SlabCount int
}

// DefaultConfig matches the original implementation's defaults, used by
// the process-wide thread-local allocator when no override is given.
func DefaultConfig() Config {
	return Config{SlabSize: 256, SlabCount: 40 * 1024}
}

// Allocator is a fixed-capacity pool of slab_count slabs of slab_size bytes
// each, with O(1) allocate/free via an intrusive singly-linked free list.
//
// Each slab is prefixed by a ptrSize-byte "next" field: while free, it holds
// the id of the next free slab (or idMax to terminate the list); once
// allocated, it is stamped with idAllocatedMarker (idMax-1) so a second
// Free call on the same id is detected as a double-free.
//
// Allocator is not safe for concurrent use; callers needing cross-goroutine
// sharing must guard it externally (see package lockbox) or use a
// container.Config with an embedded, not thread-local, allocator.
type Allocator struct {
	config     Config
	data       []byte
	ptrSize    int
	idMax      int // end-of-list sentinel
	firstFree  int
	freeCount  int
	initalized bool
}

// New returns an uninitialized Allocator. Call Init before use.
func New() *Allocator {
	return &Allocator{}
}

// NewInit is a convenience constructor combining New and Init.
func NewInit(cfg Config) (*Allocator, error) {
	a := New()
	if err := a.Init(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// Init initializes the allocator. It may be called exactly once.
func (a *Allocator) Init(cfg Config) error {
	if a.initalized {
		return corerr.New(corerr.IllegalState, "slab allocator already initialized")
	}
	if cfg.SlabSize < 8 {
		return corerr.New(corerr.IllegalArgument, "slab_size must be at least 8 bytes")
	}
	if cfg.SlabCount == 0 {
		return corerr.New(corerr.IllegalArgument, "slab_count must be greater than 0")
	}

	ptrSize := 0
	for x := cfg.SlabCount + 2; x != 0; x >>= 8 {
		ptrSize++
	}
	idMax := maxForWidth(ptrSize)

	data := make([]byte, cfg.SlabCount*(cfg.SlabSize+ptrSize))
	for i := 0; i < cfg.SlabCount; i++ {
		next := i + 1
		if i == cfg.SlabCount-1 {
			next = idMax
		}
		putUint(data[i*(ptrSize+cfg.SlabSize):], ptrSize, next)
	}

	a.config = cfg
	a.data = data
	a.ptrSize = ptrSize
	a.idMax = idMax
	a.firstFree = 0
	a.freeCount = cfg.SlabCount
	a.initalized = true
	return nil
}

// IsInit reports whether Init has been called.
func (a *Allocator) IsInit() bool { return a.initalized }

// SlabSize returns the configured per-slab payload size.
func (a *Allocator) SlabSize() (int, error) {
	if !a.initalized {
		return 0, errNotInit()
	}
	return a.config.SlabSize, nil
}

// SlabCount returns the configured total slab count.
func (a *Allocator) SlabCount() (int, error) {
	if !a.initalized {
		return 0, errNotInit()
	}
	return a.config.SlabCount, nil
}

// FreeCount returns the number of currently unallocated slabs.
func (a *Allocator) FreeCount() (int, error) {
	if !a.initalized {
		return 0, errNotInit()
	}
	return a.freeCount, nil
}

// PtrSize returns the byte width of an id as derived from slab_count. Slab-
// backed containers (package container) reserve this many trailing bytes
// of each slab's payload for their own chain-next-id field, distinct from
// the allocator's internal free-list prefix.
func (a *Allocator) PtrSize() (int, error) {
	if !a.initalized {
		return 0, errNotInit()
	}
	return a.ptrSize, nil
}

// NilID returns the sentinel id value used to terminate a chain or mark a
// bucket/slot empty. It is guaranteed to never be a valid allocated id.
func (a *Allocator) NilID() (int, error) {
	if !a.initalized {
		return 0, errNotInit()
	}
	return a.idMax, nil
}

// Slab is an immutable view of an allocated slab's payload.
type Slab struct {
	data []byte
	id   int
}

// Get returns the slab's payload bytes.
func (s Slab) Get() []byte { return s.data }

// ID returns the slab's id.
func (s Slab) ID() int { return s.id }

// SlabMut is a mutable view of an allocated slab's payload.
type SlabMut struct {
	data []byte
	id   int
}

// Get returns the slab's payload bytes.
func (s SlabMut) Get() []byte { return s.data }

// GetMut returns the slab's payload bytes, mutably.
func (s SlabMut) GetMut() []byte { return s.data }

// ID returns the slab's id.
func (s SlabMut) ID() int { return s.id }

// Allocate pops the head of the free list, stamps it as allocated, and
// returns a mutable view over its payload bytes.
func (a *Allocator) Allocate() (SlabMut, error) {
	if !a.initalized {
		return SlabMut{}, errNotInit()
	}
	if a.firstFree == a.idMax {
		return SlabMut{}, corerr.New(corerr.CapacityExceeded, "no more slabs available")
	}

	id := a.firstFree
	stride := a.ptrSize + a.config.SlabSize
	offset := stride * id
	a.firstFree = getUint(a.data[offset:offset+a.ptrSize], a.ptrSize)

	putUint(a.data[offset:], a.ptrSize, a.idMax-1)

	payload := a.data[offset+a.ptrSize : offset+a.ptrSize+a.config.SlabSize]
	a.freeCount--
	return SlabMut{data: payload, id: id}, nil
}

// Free returns id to the free list. It is an IllegalState error to free an
// id that is not currently marked allocated (double-free detection).
func (a *Allocator) Free(id int) error {
	if !a.initalized {
		return errNotInit()
	}
	if id < 0 || id >= a.config.SlabCount {
		return corerr.New(corerr.ArrayIndexOutOfBounds, "slab.id = %d, total slabs = %d", id, a.config.SlabCount)
	}

	stride := a.ptrSize + a.config.SlabSize
	offset := stride * id

	marker := getUint(a.data[offset:offset+a.ptrSize], a.ptrSize)
	if marker != a.idMax-1 {
		return corerr.New(corerr.IllegalState, "slab.id = %d has been freed when not allocated", id)
	}

	putUint(a.data[offset:], a.ptrSize, a.firstFree)
	a.firstFree = id
	a.freeCount++
	return nil
}

// Get returns an immutable view of an allocated (or free) slab's payload.
func (a *Allocator) Get(id int) (Slab, error) {
	if !a.initalized {
		return Slab{}, errNotInit()
	}
	if id < 0 || id >= a.config.SlabCount {
		return Slab{}, corerr.New(corerr.ArrayIndexOutOfBounds, "slab.id = %d, total slabs = %d", id, a.config.SlabCount)
	}
	stride := a.ptrSize + a.config.SlabSize
	offset := stride*id + a.ptrSize
	return Slab{data: a.data[offset : offset+a.config.SlabSize], id: id}, nil
}

// GetMut returns a mutable view of an allocated (or free) slab's payload.
func (a *Allocator) GetMut(id int) (SlabMut, error) {
	if !a.initalized {
		return SlabMut{}, errNotInit()
	}
	if id < 0 || id >= a.config.SlabCount {
		return SlabMut{}, corerr.New(corerr.ArrayIndexOutOfBounds, "slab.id = %d, total slabs = %d", id, a.config.SlabCount)
	}
	stride := a.ptrSize + a.config.SlabSize
	offset := stride*id + a.ptrSize
	return SlabMut{data: a.data[offset : offset+a.config.SlabSize], id: id}, nil
}

func errNotInit() error {
	return corerr.New(corerr.IllegalState, "slab allocator has not been initialized")
}

func maxForWidth(width int) int {
	v := 0
	for i := 0; i < width; i++ {
		v = v<<8 | 0xff
	}
	return v
}

func putUint(dst []byte, width int, v int) {
	for i := width - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func getUint(src []byte, width int) int {
	v := 0
	for i := 0; i < width; i++ {
		v = v<<8 | int(src[i])
	}
	return v
}
