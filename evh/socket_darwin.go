//go:build darwin

package evh

import (
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-evhcore/corerr"
)

// ListenTCP creates a non-blocking listening socket via raw syscalls, the
// same idiom as the Linux implementation, since Darwin's kqueue-driven
// FastPoller also operates directly on raw fds.
func ListenTCP(ip [4]byte, port int, backlog int) (Handle, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return 0, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, err
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return 0, err
	}
	return Handle(fd), nil
}

// DialTCP opens a non-blocking outbound connection.
func DialTCP(ip [4]byte, port int) (Handle, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return 0, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, err
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: ip}
	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return 0, err
	}
	return Handle(fd), nil
}

func acceptOnce(h Handle) (Handle, bool, error) {
	nfd, _, err := unix.Accept(int(h))
	if err != nil {
		if err == unix.EAGAIN {
			return 0, false, nil
		}
		return 0, false, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return 0, false, err
	}
	return Handle(nfd), true, nil
}

func readOnce(h Handle, buf []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Read(int(h), buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

func writeOnce(h Handle, buf []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Write(int(h), buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

func closeHandle(h Handle) error { return unix.Close(int(h)) }

// LocalPort returns the port a socket is bound to, for listeners created
// with port 0 (ephemeral port assignment).
func LocalPort(h Handle) (int, error) {
	sa, err := unix.Getsockname(int(h))
	if err != nil {
		return 0, err
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, corerr.New(corerr.IllegalState, "socket is not bound to an IPv4 address")
	}
	return in4.Port, nil
}
