//go:build darwin

package wakeup

import (
	"syscall"

	"github.com/joeycumines/go-evhcore/corerr"
)

type fdSignaler struct {
	read, write int
}

// New constructs a Wakeup backed by a non-blocking, close-on-exec self-pipe,
// the standard kqueue wake-up idiom.
func New() (*Wakeup, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return nil, corerr.Wrap(corerr.IO, err, "pipe")
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, corerr.Wrap(corerr.IO, err, "set read end nonblocking")
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, corerr.Wrap(corerr.IO, err, "set write end nonblocking")
	}
	return newWakeup(&fdSignaler{read: fds[0], write: fds[1]}), nil
}

func (s *fdSignaler) signal() error {
	_, err := syscall.Write(s.write, []byte{0})
	if err != nil && err != syscall.EAGAIN {
		return corerr.Wrap(corerr.IO, err, "pipe write")
	}
	return nil
}

func (s *fdSignaler) drain() error {
	var buf [64]byte
	for {
		_, err := syscall.Read(s.read, buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

func (s *fdSignaler) fd() int { return s.read }

func (s *fdSignaler) close() error {
	if s.read >= 0 {
		_ = syscall.Close(s.read)
	}
	if s.write >= 0 && s.write != s.read {
		_ = syscall.Close(s.write)
	}
	return nil
}
