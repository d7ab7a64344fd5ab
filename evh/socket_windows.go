//go:build windows

package evh

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/joeycumines/go-evhcore/corerr"
)

// The x/sys/windows package exposes no non-blocking accept/recv/send
// wrappers (AcceptEx/WSARecv are overlapped-only); ws2_32.dll's classic
// blocking-capable accept/recv/send/ioctlsocket are called directly,
// matching this package's Linux/Darwin raw-syscall approach.
var (
	modws2_32        = windows.NewLazySystemDLL("ws2_32.dll")
	procAccept       = modws2_32.NewProc("accept")
	procRecv         = modws2_32.NewProc("recv")
	procSend         = modws2_32.NewProc("send")
	procIoctlsocket  = modws2_32.NewProc("ioctlsocket")
	procWSAGetLastEr = modws2_32.NewProc("WSAGetLastError")
)

const fionbio = 0x8004667e

func setNonblock(h windows.Handle) error {
	var mode uint32 = 1
	r1, _, _ := procIoctlsocket.Call(uintptr(h), uintptr(fionbio), uintptr(unsafe.Pointer(&mode)))
	if r1 != 0 {
		return lastWSAError()
	}
	return nil
}

func lastWSAError() error {
	r1, _, _ := procWSAGetLastEr.Call()
	return syscall.Errno(r1)
}

// ListenTCP creates a non-blocking listening socket.
func ListenTCP(ip [4]byte, port int, backlog int) (Handle, error) {
	fd, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return 0, err
	}
	if err := windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		windows.Closesocket(fd)
		return 0, err
	}
	sa := &windows.SockaddrInet4{Port: port, Addr: ip}
	if err := windows.Bind(fd, sa); err != nil {
		windows.Closesocket(fd)
		return 0, err
	}
	if err := windows.Listen(fd, backlog); err != nil {
		windows.Closesocket(fd)
		return 0, err
	}
	if err := setNonblock(fd); err != nil {
		windows.Closesocket(fd)
		return 0, err
	}
	return Handle(fd), nil
}

// DialTCP opens a non-blocking outbound connection.
func DialTCP(ip [4]byte, port int) (Handle, error) {
	fd, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return 0, err
	}
	if err := setNonblock(fd); err != nil {
		windows.Closesocket(fd)
		return 0, err
	}
	sa := &windows.SockaddrInet4{Port: port, Addr: ip}
	err = windows.Connect(fd, sa)
	if err != nil && err != windows.WSAEWOULDBLOCK {
		windows.Closesocket(fd)
		return 0, err
	}
	return Handle(fd), nil
}

func acceptOnce(h Handle) (Handle, bool, error) {
	r1, _, _ := procAccept.Call(uintptr(h), 0, 0)
	nfd := windows.Handle(r1)
	if nfd == windows.InvalidHandle {
		werr := lastWSAError()
		if werr == windows.WSAEWOULDBLOCK {
			return 0, false, nil
		}
		return 0, false, werr
	}
	if err := setNonblock(nfd); err != nil {
		windows.Closesocket(nfd)
		return 0, false, err
	}
	return Handle(nfd), true, nil
}

func readOnce(h Handle, buf []byte) (n int, wouldBlock bool, err error) {
	if len(buf) == 0 {
		return 0, false, nil
	}
	r1, _, _ := procRecv.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), 0)
	ret := int32(r1)
	if ret < 0 {
		werr := lastWSAError()
		if werr == windows.WSAEWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, werr
	}
	return int(ret), false, nil
}

func writeOnce(h Handle, buf []byte) (n int, wouldBlock bool, err error) {
	if len(buf) == 0 {
		return 0, false, nil
	}
	r1, _, _ := procSend.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), 0)
	ret := int32(r1)
	if ret < 0 {
		werr := lastWSAError()
		if werr == windows.WSAEWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, werr
	}
	return int(ret), false, nil
}

func closeHandle(h Handle) error { return windows.Closesocket(windows.Handle(h)) }

// LocalPort returns the port a socket is bound to, for listeners created
// with port 0 (ephemeral port assignment).
func LocalPort(h Handle) (int, error) {
	sa, err := windows.Getsockname(windows.Handle(h))
	if err != nil {
		return 0, err
	}
	in4, ok := sa.(*windows.SockaddrInet4)
	if !ok {
		return 0, corerr.New(corerr.IllegalState, "socket is not bound to an IPv4 address")
	}
	return in4.Port, nil
}
