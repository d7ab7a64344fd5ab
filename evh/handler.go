package evh

import (
	"context"

	"github.com/joeycumines/go-evhcore/corelog"
	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/threadpool"
)

// Handler is the event-driven networking core: N workers, each owning one
// platform multiplexer, a per-worker read-slab allocator, and a shared set
// of user callbacks.
type Handler struct {
	cfg     Config
	workers []*worker
	pool    *threadpool.Pool

	onRead        OnReadFunc
	onAccept      OnAcceptFunc
	onClose       OnCloseFunc
	onHousekeeper OnHousekeeperFunc
	onPanic       OnPanicFunc

	started bool
}

// NewHandler validates cfg and constructs cfg.Threads workers, each with
// its own initialized platform multiplexer, wakeup, and read-slab
// allocator. Workers do not begin running until Start.
func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Handler{cfg: cfg}
	h.workers = make([]*worker, cfg.Threads)
	for i := range h.workers {
		w, err := newWorker(i, h)
		if err != nil {
			for j := 0; j < i; j++ {
				h.workers[j].closeAll()
			}
			return nil, err
		}
		h.workers[i] = w
	}
	return h, nil
}

func (h *Handler) SetOnRead(fn OnReadFunc)               { h.onRead = fn }
func (h *Handler) SetOnAccept(fn OnAcceptFunc)           { h.onAccept = fn }
func (h *Handler) SetOnClose(fn OnCloseFunc)             { h.onClose = fn }
func (h *Handler) SetOnHousekeeper(fn OnHousekeeperFunc) { h.onHousekeeper = fn }
func (h *Handler) SetOnPanic(fn OnPanicFunc)             { h.onPanic = fn }

func (h *Handler) invokeHousekeeper(w *worker) {
	if h.onHousekeeper == nil {
		return
	}
	h.onHousekeeper(newUserContext(w, nil))
}

func (h *Handler) invokeOnPanic(w *worker, payload any) {
	if h.onPanic == nil {
		return
	}
	h.onPanic(newUserContext(w, nil), payload)
}

// workerFor picks the worker owning handle, per the spec's "handle mod
// threads" assignment rule.
func (h *Handler) workerFor(handle Handle) *worker {
	idx := handle % len(h.workers)
	if idx < 0 {
		idx += len(h.workers)
	}
	return h.workers[idx]
}

// Start spawns each worker's loop on the internal thread pool, installing
// a panic backstop: a panic escaping a worker's run loop (a defect in this
// package, since per-connection callbacks are already isolated via
// dispatch's own recover) is logged. The worker is not respawned: its loop
// stays stopped.
func (h *Handler) Start() error {
	if h.started {
		return corerr.New(corerr.IllegalState, "evh: handler already started")
	}
	h.started = true

	pool, err := threadpool.New(
		threadpool.WithMinSize(len(h.workers)),
		threadpool.WithMaxSize(len(h.workers)),
		threadpool.WithOnPanic(func(workerID uint64, payload any) {
			corelog.Default().Log(corelog.LevelError, "evh: worker loop panicked", corelog.F("worker_task_id", workerID), corelog.F("panic", payload))
		}),
	)
	if err != nil {
		return err
	}
	h.pool = pool

	for _, w := range h.workers {
		w := w
		h.spawnWorker(w)
	}
	return nil
}

func (h *Handler) spawnWorker(w *worker) {
	_, _ = h.pool.Execute(context.Background(), func(ctx context.Context) (any, error) {
		w.run()
		return nil, nil
	})
}

// Stop stops the embedded thread pool, sets every worker's stop flag, and
// wakes every worker so it observes the flag promptly.
func (h *Handler) Stop() error {
	for _, w := range h.workers {
		w.requestStop()
	}
	if h.pool != nil {
		return h.pool.Close()
	}
	return nil
}

// AddServerConnection registers a listening connection, assigning it to
// worker handle mod threads, and blocks until that worker has installed
// it. Must be called after Start: nothing drains the installation queue
// until the worker's run loop is executing.
func (h *Handler) AddServerConnection(handle Handle) (WriteHandle, error) {
	return h.addConnection(handle, VariantServer)
}

// AddClientConnection registers an outbound connection, assigning it to
// worker handle mod threads, and blocks until that worker has installed
// it. Must be called after Start, for the same reason as
// AddServerConnection.
func (h *Handler) AddClientConnection(handle Handle) (WriteHandle, error) {
	return h.addConnection(handle, VariantClient)
}

func (h *Handler) addConnection(handle Handle, variant Variant) (WriteHandle, error) {
	w := h.workerFor(handle)
	conn := newConnection(handle, variant, chainNilID)
	<-w.enqueueConnection(conn)
	return newWriteHandle(conn, w), nil
}

// WaitForStats aggregates every worker's statistics snapshot.
func (h *Handler) WaitForStats() Stats {
	var total Stats
	for _, w := range h.workers {
		total = total.add(w.stats.snapshot())
	}
	return total
}
