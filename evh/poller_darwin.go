//go:build darwin

package evh

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-evhcore/corerr"
)

// maxWatchedFD is the initial table size; RegisterFD grows the table
// past this on demand, up to fdHardLimit.
const maxWatchedFD = 1 << 16

// fdHardLimit caps how large the table may grow, guarding against a
// runaway fd value driving an unbounded allocation.
const fdHardLimit = 100_000_000

// IOEvents is a bitmask of the I/O conditions a caller wants notified
// about, translated to/from kqueue filters at the RegisterFD/ModifyFD
// boundary.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

var (
	ErrFDOutOfRange        = corerr.New(corerr.IllegalArgument, "evh: fd out of range (max %d)", fdHardLimit)
	ErrFDAlreadyRegistered = corerr.New(corerr.IllegalState, "evh: fd already registered")
	ErrFDNotRegistered     = corerr.New(corerr.IllegalState, "evh: fd not registered")
	ErrPollerClosed        = corerr.New(corerr.IllegalState, "evh: poller closed")
)

// IOCallback is invoked with the events that fired for the fd it was
// registered against.
type IOCallback func(IOEvents)

// watch is one registered fd's subscription: what it wants, who to tell
// when it gets it, and whether the slot is currently in use.
type watch struct {
	cb   IOCallback
	want IOEvents
	live bool
}

// FastPoller is a single worker's kqueue-backed multiplexer. It is built
// and driven entirely from the owning worker's goroutine except for
// RegisterFD/ModifyFD/UnregisterFD, which may be called concurrently
// (e.g. a connection being torn down from a different code path) and so
// are guarded by mu. table grows as larger fds are registered rather
// than being allocated at fdHardLimit up front.
type FastPoller struct {
	kq     int
	table  []watch
	mu     sync.RWMutex
	ready  [256]unix.Kevent_t
	closed atomic.Bool
}

// Init creates the underlying kqueue instance.
func (p *FastPoller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.table = make([]watch, maxWatchedFD)
	return nil
}

// Close releases the kqueue instance.
func (p *FastPoller) Close() error {
	p.closed.Store(true)
	if p.kq == 0 {
		return nil
	}
	return unix.Close(p.kq)
}

// grow extends the table so index fd is addressable. Caller holds mu.
func (p *FastPoller) grow(fd int) {
	if fd < len(p.table) {
		return
	}
	size := fd*2 + 1
	if size > fdHardLimit {
		size = fdHardLimit + 1
	}
	next := make([]watch, size)
	copy(next, p.table)
	p.table = next
}

// RegisterFD starts monitoring fd for the given events, invoking cb on
// every PollIO call that observes activity on it.
func (p *FastPoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= fdHardLimit {
		return ErrFDOutOfRange
	}

	p.mu.Lock()
	p.grow(fd)
	if p.table[fd].live {
		p.mu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.table[fd] = watch{cb: cb, want: events, live: true}
	p.mu.Unlock()

	changes := kqueueChanges(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(changes) > 0 {
		if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
			p.mu.Lock()
			p.table[fd] = watch{}
			p.mu.Unlock()
			return err
		}
	}
	return nil
}

// UnregisterFD stops monitoring fd.
//
// A callback already in flight for fd when UnregisterFD is called may
// still run to completion: deliver copies a watch out from under mu
// before invoking its callback, so a concurrent UnregisterFD clearing
// the slot does not retroactively cancel a callback already underway.
// Callers must not close the underlying fd until they know no callback
// for it is running, e.g. by coordinating with a sync.WaitGroup.
func (p *FastPoller) UnregisterFD(fd int) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.mu.Lock()
	if fd >= len(p.table) || !p.table[fd].live {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	want := p.table[fd].want
	p.table[fd] = watch{}
	p.mu.Unlock()

	changes := kqueueChanges(fd, want, unix.EV_DELETE)
	if len(changes) > 0 {
		_, _ = unix.Kevent(p.kq, changes, nil, nil)
	}
	return nil
}

// ModifyFD changes which events fd is monitored for.
func (p *FastPoller) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.mu.Lock()
	if fd >= len(p.table) || !p.table[fd].live {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	prev := p.table[fd].want
	p.table[fd].want = events
	p.mu.Unlock()

	if dropped := prev &^ events; dropped != 0 {
		if changes := kqueueChanges(fd, dropped, unix.EV_DELETE); len(changes) > 0 {
			_, _ = unix.Kevent(p.kq, changes, nil, nil)
		}
	}
	if added := events &^ prev; added != 0 {
		if changes := kqueueChanges(fd, added, unix.EV_ADD|unix.EV_ENABLE); len(changes) > 0 {
			if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// PollIO blocks for up to timeoutMs milliseconds waiting for I/O
// activity, dispatches every ready fd's callback, and returns the
// number of fds that fired.
func (p *FastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	var deadline *unix.Timespec
	if timeoutMs >= 0 {
		deadline = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64(timeoutMs%1000) * 1_000_000,
		}
	}

	n, err := unix.Kevent(p.kq, nil, p.ready[:], deadline)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	p.deliver(n)
	return n, nil
}

// deliver runs each ready fd's callback, copying its watch out from
// under a read lock so the callback itself runs lock-free.
func (p *FastPoller) deliver(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.ready[i].Ident)
		if fd < 0 {
			continue
		}

		p.mu.RLock()
		var w watch
		if fd < len(p.table) {
			w = p.table[fd]
		}
		p.mu.RUnlock()

		if w.live && w.cb != nil {
			w.cb(keventToIOEvents(&p.ready[i]))
		}
	}
}

// kqueueChanges builds the kevent changelist needed to apply flags to
// events on fd -- one entry per filter (read/write), since kqueue has no
// combined read+write filter the way epoll does.
func kqueueChanges(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if events&EventRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return changes
}

func keventToIOEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
