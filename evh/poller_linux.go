//go:build linux

package evh

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-evhcore/corerr"
)

// maxWatchedFD bounds the table size so a bogus or adversarial fd value
// can't trigger an unbounded allocation.
const maxWatchedFD = 1 << 16

// IOEvents is a bitmask of the I/O conditions a caller wants notified
// about, translated to/from the platform multiplexer's own flag bits at
// the RegisterFD/ModifyFD boundary.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

var (
	ErrFDOutOfRange        = corerr.New(corerr.IllegalArgument, "evh: fd out of range (max %d)", maxWatchedFD-1)
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

// FastPoller is a single worker's epoll-backed multiplexer. It is built
// and driven entirely from the owning worker's goroutine except for
// RegisterFD/ModifyFD/UnregisterFD, which may be called concurrently
// (e.g. a connection being torn down from a different code path) and so
// are guarded by mu.
type FastPoller struct {
	epfd   int
	table  [maxWatchedFD]watch
	mu     sync.RWMutex
	epoch  atomic.Uint64
	ready  [256]unix.EpollEvent
	closed atomic.Bool
}

// Init creates the underlying epoll instance.
func (p *FastPoller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = fd
	return nil
}

// Close releases the epoll instance. Safe to call once; further use of
// the poller after Close is rejected via the closed flag.
func (p *FastPoller) Close() error {
	p.closed.Store(true)
	if p.epfd == 0 {
		return nil
	}
	return unix.Close(p.epfd)
}

// RegisterFD starts monitoring fd for the given events, invoking cb on
// every PollIO call that observes activity on it.
func (p *FastPoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxWatchedFD {
		return ErrFDOutOfRange
	}

	p.mu.Lock()
	if p.table[fd].live {
		p.mu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.table[fd] = watch{cb: cb, want: events, live: true}
	p.epoch.Add(1)
	p.mu.Unlock()

	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: toEpollMask(events),
		Fd:     int32(fd),
	})
	if err != nil {
		p.mu.Lock()
		p.table[fd] = watch{}
		p.mu.Unlock()
		return err
	}
	return nil
}

// UnregisterFD stops monitoring fd. A callback already in flight for fd
// when UnregisterFD is called may still run to completion; callers must
// not close the underlying fd until they know no callback is running.
func (p *FastPoller) UnregisterFD(fd int) error {
	if fd < 0 || fd >= maxWatchedFD {
		return ErrFDOutOfRange
	}

	p.mu.Lock()
	if !p.table[fd].live {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	p.table[fd] = watch{}
	p.epoch.Add(1)
	p.mu.Unlock()

	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// ModifyFD changes which events fd is monitored for.
func (p *FastPoller) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 || fd >= maxWatchedFD {
		return ErrFDOutOfRange
	}

	p.mu.Lock()
	if !p.table[fd].live {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	p.table[fd].want = events
	p.epoch.Add(1)
	p.mu.Unlock()

	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: toEpollMask(events),
		Fd:     int32(fd),
	})
}

// PollIO blocks for up to timeoutMs milliseconds waiting for I/O
// activity, dispatches every ready fd's callback, and returns the
// number of fds that fired.
func (p *FastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	epochBefore := p.epoch.Load()

	n, err := unix.EpollWait(p.epfd, p.ready[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	// A concurrent Register/Modify/Unregister during the blocking wait
	// means p.ready may reference fds whose watch state has since
	// changed; rather than track per-event validity, discard the whole
	// batch and let the next PollIO pick up current state.
	if p.epoch.Load() != epochBefore {
		return 0, nil
	}

	p.deliver(n)
	return n, nil
}

// deliver runs each ready fd's callback. Each watch is copied out under
// a read lock and invoked outside of it, so a callback that calls back
// into RegisterFD/ModifyFD/UnregisterFD for a different fd never
// deadlocks against mu.
func (p *FastPoller) deliver(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.ready[i].Fd)
		if fd < 0 || fd >= maxWatchedFD {
			continue
		}

		p.mu.RLock()
		w := p.table[fd]
		p.mu.RUnlock()

		if w.live && w.cb != nil {
			w.cb(fromEpollMask(p.ready[i].Events))
		}
	}
}

func toEpollMask(events IOEvents) uint32 {
	var mask uint32
	if events&EventRead != 0 {
		mask |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func fromEpollMask(mask uint32) IOEvents {
	var events IOEvents
	if mask&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if mask&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if mask&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if mask&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
