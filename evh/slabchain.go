package evh

import (
	"encoding/binary"

	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/slab"
)

// Read-slab chains use a fixed 4-byte trailing next-slab-id field per
// slab, independent of package container's derived ptr_size scheme: the
// worker's read-slab allocator is sized purely from Config.ReadSlabSize,
// with no relationship to slab_count-derived pointer widths.
const (
	chainPtrWidth = 4
	chainNilID    = 0xFFFFFFFF
)

func chainChunk(slabSize int) int { return slabSize - chainPtrWidth }

func readChainNext(payload []byte) int {
	return int(binary.BigEndian.Uint32(payload[len(payload)-chainPtrWidth:]))
}

func writeChainNext(payload []byte, next int) {
	binary.BigEndian.PutUint32(payload[len(payload)-chainPtrWidth:], uint32(next))
}

// appendToChain writes b into conn's read chain, allocating new slabs
// from alloc as needed. It never rewinds lastSlab/slabOffset on failure;
// a partial write before an allocation failure is retained.
func appendToChain(alloc *slab.Allocator, conn *Connection, b []byte) error {
	slabSize, err := alloc.SlabSize()
	if err != nil {
		return err
	}
	chunk := chainChunk(slabSize)
	if chunk <= 0 {
		return corerr.New(corerr.Configuration, "read_slab_size %d too small for chain pointer", slabSize)
	}

	for len(b) > 0 {
		if conn.firstSlab == chainNilID {
			s, err := alloc.Allocate()
			if err != nil {
				return err
			}
			writeChainNext(s.GetMut(), chainNilID)
			conn.firstSlab = s.ID()
			conn.lastSlab = s.ID()
			conn.slabOffset = 0
		}

		s, err := alloc.GetMut(conn.lastSlab)
		if err != nil {
			return err
		}
		room := chunk - conn.slabOffset
		if room == 0 {
			next, err := alloc.Allocate()
			if err != nil {
				return err
			}
			writeChainNext(next.GetMut(), chainNilID)
			writeChainNext(s.GetMut(), next.ID())
			conn.lastSlab = next.ID()
			conn.slabOffset = 0
			continue
		}

		n := room
		if n > len(b) {
			n = len(b)
		}
		copy(s.GetMut()[conn.slabOffset:conn.slabOffset+n], b[:n])
		conn.slabOffset += n
		b = b[n:]
	}
	return nil
}

// freeConnChain returns every slab in conn's read chain to alloc and
// resets its chain fields to empty.
func freeConnChain(alloc *slab.Allocator, conn *Connection) error {
	id := conn.firstSlab
	for id != chainNilID {
		s, err := alloc.Get(id)
		if err != nil {
			return err
		}
		next := readChainNext(s.Get())
		if err := alloc.Free(id); err != nil {
			return err
		}
		id = next
	}
	conn.firstSlab = chainNilID
	conn.lastSlab = chainNilID
	conn.slabOffset = 0
	return nil
}

// UserContext is the per-callback scratch handle exposing a connection's
// read chain and the owning worker's type-erased user-data slot.
type UserContext struct {
	w      *worker
	conn   *Connection
	cursor int
	offset int
}

// newUserContext builds a scratch handle for conn's read chain. conn may
// be nil for worker-level callbacks (on-housekeeper, on-panic) that only
// need GetUserData/SetUserData; the chain-walking methods become no-ops
// in that case.
func newUserContext(w *worker, conn *Connection) *UserContext {
	u := &UserContext{w: w, conn: conn, cursor: chainNilID, offset: 0}
	if conn != nil {
		u.cursor = conn.firstSlab
	}
	return u
}

// CurSlabID returns the slab id the read cursor currently points at, or
// the chain-terminating sentinel if the cursor is past the chain's end.
func (u *UserContext) CurSlabID() int { return u.cursor }

// CloneNextChunk copies up to len(buf) bytes from the current slab into
// buf, advancing the cursor to the next slab (per its trailing 4-byte
// pointer) once the current slab is exhausted. It returns 0 at chain end.
func (u *UserContext) CloneNextChunk(buf []byte) (int, error) {
	if u.cursor == chainNilID || len(buf) == 0 {
		return 0, nil
	}
	slabSize, err := u.w.readAlloc.SlabSize()
	if err != nil {
		return 0, err
	}
	chunk := chainChunk(slabSize)

	s, err := u.w.readAlloc.Get(u.cursor)
	if err != nil {
		return 0, err
	}
	limit := chunk
	if u.cursor == u.conn.lastSlab {
		limit = u.conn.slabOffset
	}
	avail := limit - u.offset
	if avail <= 0 {
		next := readChainNext(s.Get())
		u.cursor = next
		u.offset = 0
		if next == chainNilID {
			return 0, nil
		}
		return u.CloneNextChunk(buf)
	}

	n := avail
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, s.Get()[u.offset:u.offset+n])
	u.offset += n
	return n, nil
}

// ClearThrough releases every slab in the chain up to and including
// slabID, updating the connection's first-slab pointer. Used when a
// protocol frame has been fully consumed.
func (u *UserContext) ClearThrough(slabID int) error {
	if u.conn == nil {
		return corerr.New(corerr.IllegalState, "clear_through called on a connection-less user context")
	}
	id := u.conn.firstSlab
	for id != chainNilID {
		s, err := u.w.readAlloc.Get(id)
		if err != nil {
			return err
		}
		next := readChainNext(s.Get())
		if err := u.w.readAlloc.Free(id); err != nil {
			return err
		}
		done := id == slabID
		id = next
		if done {
			u.conn.firstSlab = next
			if next == chainNilID {
				u.conn.lastSlab = chainNilID
				u.conn.slabOffset = 0
			}
			return nil
		}
	}
	return corerr.New(corerr.ArrayIndexOutOfBounds, "slab %d not found in connection's read chain", slabID)
}

// ClearAll releases the connection's entire read chain.
func (u *UserContext) ClearAll() error {
	if u.conn == nil {
		return nil
	}
	if err := freeConnChain(u.w.readAlloc, u.conn); err != nil {
		return err
	}
	u.cursor = chainNilID
	u.offset = 0
	return nil
}

// WriteHandle returns a write handle for u's connection, usable from any
// goroutine -- including the worker's own, to echo data back within the
// same on-read callback that received it. Panics if u has no connection
// (a worker-level callback context).
func (u *UserContext) WriteHandle() WriteHandle {
	if u.conn == nil {
		panic("evh: write_handle called on a connection-less user context")
	}
	return newWriteHandle(u.conn, u.w)
}

// GetUserData returns the owning worker's type-erased user-data slot.
func (u *UserContext) GetUserData() any { return u.w.ctx.userData }

// SetUserData replaces the owning worker's type-erased user-data slot.
func (u *UserContext) SetUserData(v any) { u.w.ctx.userData = v }
