//go:build linux

package wakeup

import (
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-evhcore/corerr"
)

type fdSignaler struct {
	efd int
}

// New constructs a Wakeup backed by a Linux eventfd. The same descriptor
// serves as both the poller-registered fd and the signal/drain target.
func New() (*Wakeup, error) {
	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, corerr.Wrap(corerr.IO, err, "eventfd")
	}
	return newWakeup(&fdSignaler{efd: efd}), nil
}

func (s *fdSignaler) signal() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(s.efd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return corerr.Wrap(corerr.IO, err, "eventfd write")
	}
	return nil
}

func (s *fdSignaler) drain() error {
	var buf [8]byte
	for {
		_, err := unix.Read(s.efd, buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

func (s *fdSignaler) fd() int { return s.efd }

func (s *fdSignaler) close() error {
	if s.efd >= 0 {
		return unix.Close(s.efd)
	}
	return nil
}
