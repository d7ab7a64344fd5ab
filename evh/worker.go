package evh

import (
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/go-evhcore/corelog"
	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/lockbox"
	"github.com/joeycumines/go-evhcore/slab"
	"github.com/joeycumines/go-evhcore/wakeup"
)

// pendingConn is a connection awaiting installation into a worker's
// id/handle maps, plus an optional one-shot channel external registration
// callers block on until installation completes.
type pendingConn struct {
	conn *Connection
	done chan struct{}
}

// eventHandlerState is the cross-thread-visible portion of a worker's
// state: connections awaiting installation, connection ids awaiting
// write-path processing, and the stop flag. Guarded by one lockbox.Lock
// per worker; producers (external registration, WriteHandle methods) take
// the write lock briefly, and the worker itself drains it once per
// iteration.
type eventHandlerState struct {
	nconnections []*pendingConn
	writeQueue   []uuid.UUID
	stop         bool
}

// EventHandlerContext holds the single type-erased user-data slot exposed
// to callbacks via UserContext.GetUserData/SetUserData, per worker.
type EventHandlerContext struct {
	userData any
}

// worker owns one platform multiplexer, one read-slab allocator, and the
// thread-local connection maps that only its own goroutine ever touches.
type worker struct {
	index     int
	handler   *Handler
	poller    *FastPoller
	wake_     *wakeup.Wakeup
	readAlloc *slab.Allocator

	state *lockbox.Lock[eventHandlerState]
	ctx   *EventHandlerContext

	// byHandle/byID are thread-local: only this worker's own goroutine
	// reads or writes them, per the spec's EventHandlerContext contract.
	byHandle map[Handle]uuid.UUID
	byID     map[uuid.UUID]*Connection

	stats workerStats

	lastHousekeeping time.Time
	lastStatsUpdate  time.Time
}

func newWorker(index int, h *Handler) (*worker, error) {
	poller := &FastPoller{}
	if err := poller.Init(); err != nil {
		return nil, corerr.Wrap(corerr.IO, err, "init poller for worker %d", index)
	}

	wk, err := newWorkerWakeup(poller)
	if err != nil {
		_ = poller.Close()
		return nil, err
	}

	readAlloc, err := slab.NewInit(slab.Config{SlabSize: h.cfg.ReadSlabSize, SlabCount: h.cfg.ReadSlabCount})
	if err != nil {
		_ = wk.Close()
		_ = poller.Close()
		return nil, err
	}

	w := &worker{
		index:     index,
		handler:   h,
		poller:    poller,
		wake_:     wk,
		readAlloc: readAlloc,
		state:     lockbox.New(eventHandlerState{}),
		ctx:       &EventHandlerContext{},
		byHandle:  make(map[Handle]uuid.UUID),
		byID:      make(map[uuid.UUID]*Connection),
	}

	if fd := wk.FD(); fd >= 0 {
		if err := poller.RegisterFD(fd, EventRead, func(IOEvents) {
			_ = w.wake_.Drain()
		}); err != nil {
			_ = wk.Close()
			_ = poller.Close()
			return nil, corerr.Wrap(corerr.IO, err, "register wakeup fd for worker %d", index)
		}
	}

	return w, nil
}

// enqueueConnection pushes conn onto this worker's nconnections queue and
// wakes it. The returned channel closes once the worker has installed the
// connection, per add_server_connection/add_client_connection's one-shot
// confirmation contract.
func (w *worker) enqueueConnection(conn *Connection) <-chan struct{} {
	pc := &pendingConn{conn: conn, done: make(chan struct{})}
	g := w.state.Write()
	s := g.Value()
	s.nconnections = append(s.nconnections, pc)
	g.Set(s)
	g.Unlock()
	w.wake()
	return pc.done
}

func (w *worker) scheduleWrite(id uuid.UUID) {
	g := w.state.Write()
	defer g.Unlock()
	s := g.Value()
	s.writeQueue = append(s.writeQueue, id)
	g.Set(s)
}

func (w *worker) wake() { _ = w.wake_.Wakeup() }

func (w *worker) nonblockingWrite(h Handle, b []byte) (int, bool, error) {
	return writeOnce(h, b)
}

// run executes the worker's loop until its state's stop flag is observed.
func (w *worker) run() {
	for {
		w.processWritePending()
		if w.processState() {
			w.closeAll()
			return
		}

		requested, release := w.wake_.PreBlock()
		timeout := w.handler.cfg.TimeoutMs
		if requested {
			timeout = 0
		}
		if _, err := w.poller.PollIO(timeout); err != nil {
			release()
			w.wake_.PostBlock()
			if err == ErrPollerClosed {
				return
			}
			corelog.Default().Log(corelog.LevelWarn, "evh: poll failed", corelog.F("worker", w.index), corelog.F("err", err.Error()))
			continue
		}
		release()
		w.wake_.PostBlock()
	}
}

// processWritePending drains write_queue: closing connections flagged
// CLOSE, synthesizing on-read for TRIGGER_ON_READ, and registering write
// readiness for PENDING.
func (w *worker) processWritePending() {
	g := w.state.Write()
	queue := g.Value().writeQueue
	s := g.Value()
	s.writeQueue = nil
	g.Set(s)
	g.Unlock()

	for _, id := range queue {
		conn, ok := w.byID[id]
		if !ok {
			continue
		}

		wg := conn.write.Write()
		st := wg.Value()
		flags := st.flags
		if flags&flagTriggerOnRead != 0 {
			st.flags &^= flagTriggerOnRead
			wg.Set(st)
		}
		wg.Unlock()

		if flags&flagClose != 0 {
			w.closeConnection(id)
			continue
		}
		if flags&flagTriggerOnRead != 0 {
			func() {
				defer func() {
					if r := recover(); r != nil {
						corelog.Default().Log(corelog.LevelError, "evh: connection callback panicked", corelog.F("conn_id", id.String()), corelog.F("panic", r))
						w.handler.invokeOnPanic(w, r)
						w.closeConnection(id)
					}
				}()
				w.invokeOnRead(conn)
			}()
			if _, ok := w.byID[id]; !ok {
				continue
			}
		}
		if flags&flagPending != 0 {
			if err := w.poller.ModifyFD(conn.Handle, EventRead|EventWrite); err != nil {
				corelog.Default().Log(corelog.LevelWarn, "evh: modify fd for write readiness failed", corelog.F("handle", conn.Handle), corelog.F("err", err.Error()))
			}
		}
	}
}

// processState handles the stop flag, housekeeping/stats timers, and
// installs freshly-registered connections. Returns true if the worker
// should close all tracked handles and exit.
func (w *worker) processState() bool {
	g := w.state.Write()
	s := g.Value()
	stop := s.stop
	pending := s.nconnections
	s.nconnections = nil
	g.Set(s)
	g.Unlock()

	if stop {
		return true
	}

	now := time.Now()
	if w.lastHousekeeping.IsZero() || now.Sub(w.lastHousekeeping) >= time.Duration(w.handler.cfg.HousekeepingFrequencyMs)*time.Millisecond {
		w.lastHousekeeping = now
		w.handler.invokeHousekeeper(w)
	}
	if freq := w.handler.cfg.StatsUpdateFrequencyMs; freq > 0 &&
		(w.lastStatsUpdate.IsZero() || now.Sub(w.lastStatsUpdate) >= time.Duration(freq)*time.Millisecond) {
		w.lastStatsUpdate = now
		w.stats.eventLoops.Add(1)
	}

	for _, pc := range pending {
		w.install(pc.conn)
		if pc.conn.Variant == VariantAccepted {
			func() {
				defer func() {
					if r := recover(); r != nil {
						corelog.Default().Log(corelog.LevelError, "evh: connection callback panicked", corelog.F("conn_id", pc.conn.ID.String()), corelog.F("panic", r))
						w.handler.invokeOnPanic(w, r)
						w.closeConnection(pc.conn.ID)
					}
				}()
				w.invokeOnAccept(pc.conn)
			}()
		}
		close(pc.done)
	}

	return false
}

func (w *worker) install(conn *Connection) {
	w.byHandle[conn.Handle] = conn.ID
	w.byID[conn.ID] = conn

	if w.handler.cfg.Debug {
		corelog.Default().Log(corelog.LevelDebug, "evh: installed connection", corelog.F("worker", w.index), corelog.F("conn_id", conn.ID.String()), corelog.F("variant", conn.Variant))
	}

	cb := func(events IOEvents) {
		w.dispatch(conn.ID, events)
	}
	if err := w.poller.RegisterFD(conn.Handle, EventRead, cb); err != nil {
		corelog.Default().Log(corelog.LevelWarn, "evh: register fd failed", corelog.F("handle", conn.Handle), corelog.F("err", err.Error()))
	}
}

// dispatch runs the per-connection event handling for one fd, isolating
// any panic to this single connection: the panic is logged, the on-panic
// callback (if any) is invoked, and the connection is closed -- the Go
// analogue of the spec's cursor-based panic recovery, made unnecessary by
// dispatching one callback per connection rather than replaying a shared
// events array.
func (w *worker) dispatch(id uuid.UUID, events IOEvents) {
	defer func() {
		if r := recover(); r != nil {
			corelog.Default().Log(corelog.LevelError, "evh: connection callback panicked", corelog.F("conn_id", id.String()), corelog.F("panic", r))
			w.handler.invokeOnPanic(w, r)
			w.closeConnection(id)
		}
	}()

	conn, ok := w.byID[id]
	if !ok {
		return
	}

	switch conn.Variant {
	case VariantServer:
		if events&(EventRead|EventHangup) != 0 {
			w.acceptLoop(conn)
		}
	default: // Accepted, Client -- the Wakeup variant is never installed as
		// a Connection; its fd is registered directly in newWorker with its
		// own drain closure.
		if events&EventRead != 0 {
			w.readLoop(conn)
		}
		if events&(EventWrite|EventError|EventHangup) != 0 {
			w.drainWrites(conn)
		}
	}
}

func (w *worker) acceptLoop(conn *Connection) {
	for {
		nh, ok, err := acceptOnce(conn.Handle)
		if err != nil {
			corelog.Default().Log(corelog.LevelWarn, "evh: accept failed", corelog.F("handle", conn.Handle), corelog.F("err", err.Error()))
			return
		}
		if !ok {
			return
		}
		accepted := newConnection(nh, VariantAccepted, chainNilID)
		w.stats.accepts.Add(1)
		target := w.handler.workerFor(nh)
		// Internally-generated Accepted connections are handed off
		// fire-and-forget: only externally registered Server/Client
		// connections (add_server_connection/add_client_connection) block
		// their caller on the confirmation channel, since that caller runs
		// on a different goroutine than any worker.
		target.enqueueConnection(accepted)
	}
}

func (w *worker) readLoop(conn *Connection) {
	slabSize, err := w.readAlloc.SlabSize()
	if err != nil {
		w.closeConnection(conn.ID)
		return
	}
	chunk := chainChunk(slabSize)

	for {
		if conn.firstSlab == chainNilID {
			s, err := w.readAlloc.Allocate()
			if err != nil {
				w.closeConnection(conn.ID)
				return
			}
			writeChainNext(s.GetMut(), chainNilID)
			conn.firstSlab, conn.lastSlab, conn.slabOffset = s.ID(), s.ID(), 0
		}

		tail, err := w.readAlloc.GetMut(conn.lastSlab)
		if err != nil {
			w.closeConnection(conn.ID)
			return
		}
		room := chunk - conn.slabOffset
		if room == 0 {
			next, err := w.readAlloc.Allocate()
			if err != nil {
				w.closeConnection(conn.ID)
				return
			}
			writeChainNext(next.GetMut(), chainNilID)
			writeChainNext(tail.GetMut(), next.ID())
			conn.lastSlab = next.ID()
			conn.slabOffset = 0
			continue
		}

		n, wouldBlock, err := readOnce(conn.Handle, tail.GetMut()[conn.slabOffset:conn.slabOffset+room])
		if err != nil {
			w.closeConnection(conn.ID)
			return
		}
		if wouldBlock {
			return
		}
		if n == 0 {
			w.closeConnection(conn.ID)
			return
		}

		conn.slabOffset += n
		w.stats.reads.Add(1)
		w.stats.bytesRead.Add(uint64(n))
		w.invokeOnRead(conn)
	}
}

func (w *worker) drainWrites(conn *Connection) {
	g := conn.write.Write()
	st := g.Value()
	pending := st.pending
	g.Unlock()

	for len(pending) > 0 {
		n, wouldBlock, err := writeOnce(conn.Handle, pending)
		if err != nil {
			w.closeConnection(conn.ID)
			return
		}
		if wouldBlock {
			w.stats.delayedWrites.Add(1)
			break
		}
		pending = pending[n:]
	}

	g = conn.write.Write()
	st = g.Value()
	st.pending = pending
	if len(pending) == 0 {
		st.flags &^= flagPending
	}
	g.Set(st)
	g.Unlock()

	if len(pending) == 0 {
		if err := w.poller.ModifyFD(conn.Handle, EventRead); err != nil {
			corelog.Default().Log(corelog.LevelWarn, "evh: demote fd to read-only failed", corelog.F("handle", conn.Handle), corelog.F("err", err.Error()))
		}
	}
}

func (w *worker) invokeOnRead(conn *Connection) {
	if w.handler.onRead == nil {
		return
	}
	w.handler.onRead(conn, newUserContext(w, conn))
}

func (w *worker) invokeOnAccept(conn *Connection) {
	if w.handler.onAccept == nil {
		return
	}
	w.handler.onAccept(conn, newUserContext(w, conn))
}

// closeConnection implements process_close: invokes on-close, frees the
// read chain, removes both map entries, and closes the platform handle.
func (w *worker) closeConnection(id uuid.UUID) {
	conn, ok := w.byID[id]
	if !ok {
		return
	}

	_ = w.poller.UnregisterFD(conn.Handle)

	if w.handler.onClose != nil {
		w.handler.onClose(conn, newUserContext(w, conn))
	}
	if err := freeConnChain(w.readAlloc, conn); err != nil {
		corelog.Default().Log(corelog.LevelWarn, "evh: free read chain failed", corelog.F("conn_id", id.String()), corelog.F("err", err.Error()))
	}

	delete(w.byID, id)
	delete(w.byHandle, conn.Handle)
	_ = closeHandle(conn.Handle)
	w.stats.closes.Add(1)
}

func (w *worker) closeAll() {
	for id := range w.byID {
		w.closeConnection(id)
	}
	_ = w.wake_.Close()
	_ = w.poller.Close()
}

func (w *worker) requestStop() {
	g := w.state.Write()
	s := g.Value()
	s.stop = true
	g.Set(s)
	g.Unlock()
	w.wake()
}
