package container

import (
	"encoding/binary"

	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/ser"
	"github.com/joeycumines/go-evhcore/slab"
)

// Codec serializes and deserializes a single element of type T using the
// ser.Writer/ser.Reader framing contract.
type Codec[T any] struct {
	Write func(w *ser.Writer, v T)
	Read  ser.ReadFunc[T]
}

func chainParams(alloc *slab.Allocator) (slabSize, ptrSize, nilID int, err error) {
	if slabSize, err = alloc.SlabSize(); err != nil {
		return
	}
	if ptrSize, err = alloc.PtrSize(); err != nil {
		return
	}
	if nilID, err = alloc.NilID(); err != nil {
		return
	}
	return
}

func putChainID(dst []byte, width, v int) {
	for i := width - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func getChainID(src []byte, width int) int {
	v := 0
	for i := 0; i < width; i++ {
		v = v<<8 | int(src[i])
	}
	return v
}

// writeChain serializes payload, prefixed with its own 8-byte big-endian
// length, across a chain of slabs allocated from alloc. Each slab's
// trailing ptrSize bytes hold the next slab's id; alloc.NilID terminates
// the chain. It returns the id of the chain's first slab.
func writeChain(alloc *slab.Allocator, payload []byte) (int, error) {
	slabSize, ptrSize, nilID, err := chainParams(alloc)
	if err != nil {
		return 0, err
	}

	chunk := slabSize - ptrSize
	if chunk <= 0 {
		return 0, corerr.New(corerr.Configuration, "slab size %d too small for a %d-byte chain pointer", slabSize, ptrSize)
	}

	full := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(full, uint64(len(payload)))
	copy(full[8:], payload)

	var slabs []slab.SlabMut
	for off := 0; off < len(full); off += chunk {
		s, err := alloc.Allocate()
		if err != nil {
			for _, prev := range slabs {
				_ = alloc.Free(prev.ID())
			}
			return 0, err
		}
		end := off + chunk
		if end > len(full) {
			end = len(full)
		}
		copy(s.GetMut(), full[off:end])
		slabs = append(slabs, s)
	}

	for i, s := range slabs {
		next := nilID
		if i+1 < len(slabs) {
			next = slabs[i+1].ID()
		}
		putChainID(s.GetMut()[chunk:], ptrSize, next)
	}

	return slabs[0].ID(), nil
}

// readChain reconstructs the payload written by writeChain, following the
// chain starting at head.
func readChain(alloc *slab.Allocator, head int) ([]byte, error) {
	slabSize, ptrSize, nilID, err := chainParams(alloc)
	if err != nil {
		return nil, err
	}
	chunk := slabSize - ptrSize

	var raw []byte
	id := head
	for id != nilID {
		s, err := alloc.Get(id)
		if err != nil {
			return nil, err
		}
		data := s.Get()
		raw = append(raw, data[:chunk]...)
		id = getChainID(data[chunk:], ptrSize)
	}

	if len(raw) < 8 {
		return nil, corerr.New(corerr.CorruptedData, "chain payload shorter than its own length header")
	}
	length := binary.BigEndian.Uint64(raw[:8])
	if uint64(len(raw)-8) < length {
		return nil, corerr.New(corerr.CorruptedData, "chain payload truncated: want %d bytes, have %d", length, len(raw)-8)
	}
	return raw[8 : 8+length], nil
}

// freeChain returns every slab in the chain starting at head to alloc.
func freeChain(alloc *slab.Allocator, head int) error {
	slabSize, ptrSize, nilID, err := chainParams(alloc)
	if err != nil {
		return err
	}
	chunk := slabSize - ptrSize

	id := head
	for id != nilID {
		s, err := alloc.Get(id)
		if err != nil {
			return err
		}
		next := getChainID(s.Get()[chunk:], ptrSize)
		if err := alloc.Free(id); err != nil {
			return err
		}
		id = next
	}
	return nil
}
