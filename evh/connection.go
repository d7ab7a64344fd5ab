package evh

import (
	"github.com/google/uuid"

	"github.com/joeycumines/go-evhcore/lockbox"
)

// Variant tags a Connection's role.
type Variant uint8

const (
	// VariantServer listens and accepts inbound connections.
	VariantServer Variant = iota
	// VariantClient is an outbound connection initiated by the caller.
	VariantClient
	// VariantAccepted is a passive connection produced by a Server.
	VariantAccepted
	// VariantWakeup is the worker's own internal self-pipe reader; never
	// exposed to user callbacks.
	VariantWakeup
)

// writeFlags tracks a connection's write-state bits.
type writeFlags uint8

const (
	flagClose writeFlags = 1 << iota
	flagPending
	flagTriggerOnRead
)

// writeState is a connection's pending-write buffer plus flags, shared
// via a lockbox.Box so both the owning worker and any external
// WriteHandle holder can touch it safely.
type writeState struct {
	pending []byte
	flags   writeFlags
}

// Connection is a logical network endpoint tracked by one worker.
// Server and Wakeup connections never carry a read slab chain.
type Connection struct {
	Handle  Handle
	ID      uuid.UUID
	Variant Variant

	// firstSlab/lastSlab/slabOffset describe the read slab chain; nilID
	// (see slabchain.go) in firstSlab means the chain is empty.
	firstSlab  int
	lastSlab   int
	slabOffset int

	write lockbox.Box[writeState]
}

// newConnection constructs a Connection with a fresh random identity and
// an empty write state.
func newConnection(h Handle, v Variant, nilSlabID int) *Connection {
	return &Connection{
		Handle:     h,
		ID:         uuid.New(),
		Variant:    v,
		firstSlab:  nilSlabID,
		lastSlab:   nilSlabID,
		slabOffset: 0,
		write:      lockbox.NewBox(writeState{}),
	}
}

// WriteHandle is a small clonable token pointing at a connection's write
// state and its owning worker's wakeup, per §6's external write-path
// contract. It is safe to hold and call from any goroutine.
type WriteHandle struct {
	id     uuid.UUID
	handle Handle
	state  lockbox.Box[writeState]
	worker *worker
}

func newWriteHandle(c *Connection, w *worker) WriteHandle {
	return WriteHandle{id: c.ID, handle: c.Handle, state: c.write.Clone(), worker: w}
}

// Write attempts an immediate non-blocking write; bytes that cannot be
// written immediately are queued on the connection's write state, the
// PENDING flag is set, and the connection id is scheduled on the
// worker's write_queue before waking the worker.
func (h WriteHandle) Write(b []byte) error {
	g := h.state.Write()
	defer g.Unlock()
	s := g.Value()
	if len(s.pending) == 0 {
		n, wouldBlock, err := h.worker.nonblockingWrite(h.handle, b)
		if err != nil {
			s.flags |= flagClose
			g.Set(s)
			h.worker.scheduleWrite(h.id)
			h.worker.wake()
			return err
		}
		if !wouldBlock && n == len(b) {
			return nil
		}
		b = b[n:]
	}
	s.pending = append(s.pending, b...)
	s.flags |= flagPending
	g.Set(s)
	h.worker.scheduleWrite(h.id)
	h.worker.wake()
	return nil
}

// Close marks the connection for closure on the worker's next
// write-pending pass.
func (h WriteHandle) Close() {
	g := h.state.Write()
	s := g.Value()
	s.flags |= flagClose
	g.Set(s)
	g.Unlock()
	h.worker.scheduleWrite(h.id)
	h.worker.wake()
}

// TriggerOnRead schedules a synthetic on-read callback for this
// connection on the worker's next iteration, even with no new bytes —
// used by higher layers to drain already-parsed frames.
func (h WriteHandle) TriggerOnRead() {
	g := h.state.Write()
	s := g.Value()
	s.flags |= flagTriggerOnRead
	g.Set(s)
	g.Unlock()
	h.worker.scheduleWrite(h.id)
	h.worker.wake()
}
