package container_test

import (
	"errors"

	"github.com/joeycumines/go-evhcore/container"
	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/ser"
	"github.com/joeycumines/go-evhcore/slab"
)

func errorsIs(err error, kind corerr.Kind) bool {
	return errors.Is(err, corerr.KindOnly(kind))
}

func newAlloc(slabSize, slabCount int) *slab.Allocator {
	a, err := slab.NewInit(slab.Config{SlabSize: slabSize, SlabCount: slabCount})
	if err != nil {
		panic(err)
	}
	return a
}

var intCodec = container.Codec[int]{
	Write: func(w *ser.Writer, v int) { w.WriteI64(int64(v)) },
	Read:  func(r *ser.Reader) int { return int(r.ReadI64()) },
}

var stringCodec = container.Codec[string]{
	Write: func(w *ser.Writer, v string) { w.WriteBytes([]byte(v)) },
	Read:  func(r *ser.Reader) string { return string(r.ReadBytes()) },
}

func fnv64(s string) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}
