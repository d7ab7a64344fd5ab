//go:build windows

package evh

import (
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/joeycumines/go-evhcore/corelog"
	"github.com/joeycumines/go-evhcore/corerr"
)

// maxWatchedFD is the initial table size; RegisterFD grows the table
// past this on demand, up to fdHardLimit.
const maxWatchedFD = 1 << 16

// fdHardLimit caps how large the table may grow, guarding against a
// runaway handle value driving an unbounded allocation.
const fdHardLimit = 100_000_000

// IOEvents is a bitmask of the I/O conditions a caller wants notified
// about. Windows' IOCP model dispatches per-completion rather than
// per-condition, so most of this bitmask only round-trips through
// RegisterFD/ModifyFD bookkeeping; see PollIO's doc comment.
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

// IOCallback is invoked with the events that fired for the handle it was
// registered against.
type IOCallback func(IOEvents)

// watch is one registered handle's subscription: what it wants, who to
// tell when it gets it, and whether the slot is currently in use.
type watch struct {
	cb   IOCallback
	want IOEvents
	live bool
}

// FastPoller is a single worker's IOCP-backed multiplexer. It is built
// and driven entirely from the owning worker's goroutine except for
// RegisterFD/ModifyFD/UnregisterFD, which may be called concurrently and
// so are guarded by mu. table grows as larger handle values are
// registered rather than being allocated at fdHardLimit up front.
type FastPoller struct {
	iocp     windows.Handle
	wakeSock windows.Handle
	table    []watch
	mu       sync.RWMutex
	closed   atomic.Bool
}

// Init creates the underlying IOCP instance and a socket used solely to
// keep the port referenced (Windows has no standalone "create an empty
// IOCP and wait on it" primitive the way epoll/kqueue do).
func (p *FastPoller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return err
	}
	p.iocp = iocp

	sock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		_ = windows.CloseHandle(iocp)
		return err
	}
	p.wakeSock = sock

	if _, err := windows.CreateIoCompletionPort(sock, iocp, 0, 0); err != nil {
		_ = windows.Closesocket(sock)
		_ = windows.CloseHandle(iocp)
		return err
	}

	p.table = make([]watch, maxWatchedFD)
	return nil
}

// Close releases the IOCP handle and its companion socket.
func (p *FastPoller) Close() error {
	p.closed.Store(true)
	if p.iocp != 0 {
		_ = windows.CloseHandle(p.iocp)
	}
	if p.wakeSock != windows.InvalidHandle {
		_ = windows.Closesocket(p.wakeSock)
	}
	return nil
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

// RegisterFD associates handle fd with the IOCP, invoking cb on every
// PollIO call that observes a completion for it.
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

	if _, err := windows.CreateIoCompletionPort(windows.Handle(fd), p.iocp, 0, 0); err != nil {
		p.mu.Lock()
		p.table[fd] = watch{}
		p.mu.Unlock()
		return err
	}
	return nil
}

// UnregisterFD stops tracking fd. Windows detaches a handle from its
// IOCP automatically when the handle is closed, so there is no explicit
// disassociation syscall to make here -- this only clears our own
// bookkeeping.
func (p *FastPoller) UnregisterFD(fd int) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if fd >= len(p.table) || !p.table[fd].live {
		return ErrFDNotRegistered
	}
	p.table[fd] = watch{}
	return nil
}

// ModifyFD updates the events recorded for fd. IOCP completions are
// driven by which overlapped operations the caller posts (WSASend /
// WSARecv), not by a kernel-side interest set, so this only updates the
// bookkeeping ModifyFD's callers expect to be able to read back.
func (p *FastPoller) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if fd >= len(p.table) || !p.table[fd].live {
		return ErrFDNotRegistered
	}
	p.table[fd].want = events
	return nil
}

// PollIO waits up to timeoutMs milliseconds for one completion packet.
//
// Unlike the epoll/kqueue pollers, a single GetQueuedCompletionStatus
// call yields at most one completion, and that completion identifies an
// OVERLAPPED operation rather than a registered fd directly. Mapping an
// OVERLAPPED back to the Connection that posted it (so the right
// per-connection watch can be invoked, and so EventRead vs EventWrite
// can be distinguished) requires threading a per-operation context
// through WSASend/WSARecv that this package does not yet post -- evh's
// socket I/O here still goes through the same non-blocking read/write
// syscalls the Linux/Darwin builds use, layered on top of IOCP purely
// for wakeup. PollIO therefore consumes at most one completion, invokes
// no per-fd callback, and always returns 0 events (or an error).
func (p *FastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	var timeout *uint32
	if timeoutMs >= 0 {
		t := uint32(timeoutMs)
		timeout = &t
	}

	var transferred uint32
	var key uintptr
	var overlapped *windows.Overlapped

	err := windows.GetQueuedCompletionStatus(p.iocp, &transferred, &key, &overlapped, timeout)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			if errno == windows.WAIT_TIMEOUT {
				return 0, nil
			}
			if errno == windows.ERROR_ABANDONED_WAIT_0 || errno == windows.ERROR_INVALID_HANDLE {
				return 0, ErrPollerClosed
			}
		}
		return 0, err
	}

	if overlapped == nil {
		// A Wakeup-posted completion carries no overlapped pointer; it
		// exists only to unblock this wait.
		return 0, nil
	}

	corelog.Default().Log(corelog.LevelDebug, "evh: iocp completion without per-fd dispatch")
	return 0, nil
}

// Wakeup unblocks a pending PollIO from another goroutine by posting an
// empty completion packet.
func (p *FastPoller) Wakeup() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	return windows.PostQueuedCompletionStatus(p.iocp, 0, 0, nil)
}
