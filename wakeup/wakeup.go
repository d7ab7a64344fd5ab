// Package wakeup implements the self-pipe / eventfd / IOCP wake-up
// primitive used to interrupt a worker blocked in its platform poll call.
// Concurrent calls to Wakeup coalesce into a single signal; PreBlock and
// PostBlock bracket the worker's blocking wait so that no wakeup raised
// during that window is ever lost.
package wakeup

import (
	"github.com/google/uuid"

	"github.com/joeycumines/go-evhcore/lockbox"
)

// signaler is the platform-specific substrate: a way to raise and drain a
// single pending notification. Unix implementations use an eventfd or
// self-pipe; Windows posts a NULL completion to an IOCP handle instead.
type signaler interface {
	signal() error
	drain() error
	// fd returns the descriptor the poller should register for readability,
	// or -1 if this platform has no such descriptor (Windows/IOCP).
	fd() int
	close() error
}

// Wakeup coordinates waking a single worker blocked in its platform poll
// call. Each worker owns exactly one Wakeup, constructed alongside it.
type Wakeup struct {
	ID        uuid.UUID
	sig       signaler
	requested lockbox.Box[bool]
	needed    lockbox.Box[bool]
}

func newWakeup(sig signaler) *Wakeup {
	return &Wakeup{
		ID:        uuid.New(),
		sig:       sig,
		requested: lockbox.NewBox(false),
		needed:    lockbox.NewBox(false),
	}
}

// FD returns the descriptor a poller should register for readability to
// observe wakeups, or -1 on platforms (Windows) where wakeups arrive via a
// side channel instead of a readable descriptor.
func (w *Wakeup) FD() int { return w.sig.fd() }

// Wakeup requests that the worker's next (or current) blocking wait return
// promptly. It is safe to call from any goroutine, including concurrently
// with itself; concurrent callers coalesce into at most one signal byte
// between PostBlock boundaries.
func (w *Wakeup) Wakeup() error {
	rg := w.requested.Write()
	defer rg.Unlock()

	ng := w.needed.Read()
	needWakeup := ng.Value() && !rg.Value()
	ng.Unlock()

	rg.Set(true)
	if needWakeup {
		return w.sig.signal()
	}
	return nil
}

// PreBlock must be called by the worker immediately before entering its
// blocking poll wait. It reports whether a wakeup is already pending (in
// which case the worker should skip blocking this iteration) and returns a
// release function the worker must call exactly once, after the blocking
// wait returns and before calling PostBlock. Holding the guard across the
// wait prevents the needed flag from being cleared out from under a
// concurrent Wakeup call while the worker is inside the platform poll.
func (w *Wakeup) PreBlock() (requested bool, release func()) {
	rg := w.requested.Read()
	alreadyRequested := rg.Value()
	rg.Unlock()

	func() {
		ng := w.needed.Write()
		defer ng.Unlock()
		ng.Set(true)
	}()

	guard := w.needed.Read()
	return alreadyRequested, guard.Unlock
}

// PostBlock clears both the needed and requested flags. Must be called by
// the worker once per loop iteration, after the blocking wait and its
// PreBlock guard have both been released, and before the next iteration's
// PreBlock.
func (w *Wakeup) PostBlock() {
	rg := w.requested.Write()
	defer rg.Unlock()
	ng := w.needed.Write()
	defer ng.Unlock()
	rg.Set(false)
	ng.Set(false)
}

// Drain consumes any pending notification bytes/events so that a
// level-triggered poller does not immediately re-report readability. No-op
// on platforms without a readable descriptor.
func (w *Wakeup) Drain() error { return w.sig.drain() }

// Close releases the underlying platform resources. Not safe to call
// concurrently with Wakeup/PreBlock/PostBlock.
func (w *Wakeup) Close() error { return w.sig.close() }
