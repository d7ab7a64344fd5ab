// Package ser implements the canonical big-endian serialization framing
// used to persist slab-backed containers (see package container) into
// chains of slabs (see package slab).
package ser

import (
	"encoding/binary"
	"io"

	"github.com/joeycumines/go-evhcore/corerr"
)

// Writer writes primitive values in the canonical wire format: fixed-width
// integers big-endian, byte slices length-prefixed with a big-endian u64.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w as a Writer.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Err returns the first error encountered by any write call, if any. Once
// set, subsequent write calls become no-ops.
func (w *Writer) Err() error { return w.err }

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) { w.write([]byte{v}) }

// WriteI8 writes a single signed byte.
func (w *Writer) WriteI8(v int8) { w.WriteU8(uint8(v)) }

// WriteU16 writes a big-endian uint16.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.write(b[:])
}

// WriteI16 writes a big-endian int16.
func (w *Writer) WriteI16(v int16) { w.WriteU16(uint16(v)) }

// WriteU32 writes a big-endian uint32.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.write(b[:])
}

// WriteI32 writes a big-endian int32.
func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

// WriteU64 writes a big-endian uint64.
func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.write(b[:])
}

// WriteI64 writes a big-endian int64.
func (w *Writer) WriteI64(v int64) { w.WriteU64(uint64(v)) }

// WriteU128 writes a big-endian 128-bit unsigned value as two u64 halves.
func (w *Writer) WriteU128(hi, lo uint64) {
	w.WriteU64(hi)
	w.WriteU64(lo)
}

// WriteI128 writes a big-endian 128-bit value as two u64 halves.
func (w *Writer) WriteI128(hi, lo uint64) {
	w.WriteU64(hi)
	w.WriteU64(lo)
}

// WriteUsize writes n as a big-endian u64, the canonical width for lengths
// and ids regardless of host pointer width.
func (w *Writer) WriteUsize(n uint64) { w.WriteU64(n) }

// WriteFixedBytes writes b verbatim, with no length prefix.
func (w *Writer) WriteFixedBytes(b []byte) { w.write(b) }

// WriteBytes writes a big-endian u64 length prefix followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteU64(uint64(len(b)))
	w.write(b)
}

// WriteEmptyBytes writes n zero bytes.
func (w *Writer) WriteEmptyBytes(n int) {
	if n <= 0 {
		return
	}
	w.write(make([]byte, n))
}

// Reader reads values written by a Writer, checking for truncation and
// (via ExpectU8/ReadEmptyBytes) corruption.
type Reader struct {
	r   io.Reader
	err error
}

// NewReader wraps r as a Reader.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// Err returns the first error encountered by any read call, if any. Once
// set, subsequent read calls return the zero value without touching r.
func (r *Reader) Err() error { return r.err }

func (r *Reader) read(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = corerr.Wrap(corerr.IO, err, "short read")
	}
	return b
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() uint8 { return r.read(1)[0] }

// ReadI8 reads a single signed byte.
func (r *Reader) ReadI8() int8 { return int8(r.ReadU8()) }

// ReadU16 reads a big-endian uint16.
func (r *Reader) ReadU16() uint16 { return binary.BigEndian.Uint16(r.read(2)) }

// ReadI16 reads a big-endian int16.
func (r *Reader) ReadI16() int16 { return int16(r.ReadU16()) }

// ReadU32 reads a big-endian uint32.
func (r *Reader) ReadU32() uint32 { return binary.BigEndian.Uint32(r.read(4)) }

// ReadI32 reads a big-endian int32.
func (r *Reader) ReadI32() int32 { return int32(r.ReadU32()) }

// ReadU64 reads a big-endian uint64.
func (r *Reader) ReadU64() uint64 { return binary.BigEndian.Uint64(r.read(8)) }

// ReadI64 reads a big-endian int64.
func (r *Reader) ReadI64() int64 { return int64(r.ReadU64()) }

// ReadU128 reads a big-endian 128-bit unsigned value as two u64 halves.
func (r *Reader) ReadU128() (hi, lo uint64) { return r.ReadU64(), r.ReadU64() }

// ReadI128 reads a big-endian 128-bit value as two u64 halves.
func (r *Reader) ReadI128() (hi, lo uint64) { return r.ReadU64(), r.ReadU64() }

// ReadUsize reads a big-endian u64.
func (r *Reader) ReadUsize() uint64 { return r.ReadU64() }

// ReadFixedBytes reads exactly n bytes verbatim.
func (r *Reader) ReadFixedBytes(n int) []byte { return r.read(n) }

// ReadBytes reads a big-endian u64 length prefix followed by that many bytes.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadU64()
	return r.read(int(n))
}

// ExpectU8 reads one byte and fails with CorruptedData if it does not equal v.
func (r *Reader) ExpectU8(v uint8) {
	got := r.ReadU8()
	if r.err == nil && got != v {
		r.err = corerr.New(corerr.CorruptedData, "expected byte %d, got %d", v, got)
	}
}

// ReadEmptyBytes reads n bytes and fails with CorruptedData if any is nonzero.
func (r *Reader) ReadEmptyBytes(n int) {
	b := r.read(n)
	if r.err != nil {
		return
	}
	for _, x := range b {
		if x != 0 {
			r.err = corerr.New(corerr.CorruptedData, "expected %d zero bytes", n)
			return
		}
	}
}

// Writable is implemented by types that know how to serialize themselves.
// The symmetric read side cannot be expressed as an interface method in Go
// (there is no associated-constructor equivalent), so the read side is a
// separate ReadFunc[T]. The container package does not use Writable: its
// containers take a container.Codec pairing a write function with a
// ReadFunc[T]. Round-trip is the only correctness
// law: ReadFunc(Write(v)) == v.
type Writable interface {
	WriteTo(w *Writer)
}

// ReadFunc deserializes a single T from r.
type ReadFunc[T any] func(r *Reader) T
