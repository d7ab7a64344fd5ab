//go:build windows

package evh

import (
	"golang.org/x/sys/windows"

	"github.com/joeycumines/go-evhcore/wakeup"
)

// newWorkerWakeup constructs the worker's wakeup primitive. IOCP has no
// separate wakeup descriptor to register with the poller: the wakeup posts
// directly to the poller's own completion port.
func newWorkerWakeup(p *FastPoller) (*wakeup.Wakeup, error) {
	return wakeup.New(windows.Handle(p.iocp))
}
