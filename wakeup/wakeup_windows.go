//go:build windows

package wakeup

import (
	"golang.org/x/sys/windows"

	"github.com/joeycumines/go-evhcore/corerr"
)

// iocpSignaler has no readable descriptor of its own: it posts a NULL
// completion directly to the worker's IOCP handle, which causes
// GetQueuedCompletionStatus to return immediately with a nil overlapped.
type iocpSignaler struct {
	handle windows.Handle
}

// New constructs a Wakeup that signals via PostQueuedCompletionStatus on
// iocpHandle, the worker's own completion port. Unlike the Unix
// constructors, Windows requires the port handle up front since there is
// no separate descriptor to register.
func New(iocpHandle windows.Handle) (*Wakeup, error) {
	return newWakeup(&iocpSignaler{handle: iocpHandle}), nil
}

func (s *iocpSignaler) signal() error {
	if err := windows.PostQueuedCompletionStatus(s.handle, 0, 0, nil); err != nil {
		return corerr.Wrap(corerr.IO, err, "PostQueuedCompletionStatus")
	}
	return nil
}

func (s *iocpSignaler) drain() error { return nil }

func (s *iocpSignaler) fd() int { return -1 }

func (s *iocpSignaler) close() error { return nil }
