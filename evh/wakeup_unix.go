//go:build linux || darwin

package evh

import "github.com/joeycumines/go-evhcore/wakeup"

// newWorkerWakeup constructs the worker's wakeup primitive. On Unix
// platforms it is a self-pipe/eventfd registered with the poller directly;
// p is unused here but kept in the signature to match the Windows variant,
// which must associate the wakeup with the poller's IOCP handle.
func newWorkerWakeup(p *FastPoller) (*wakeup.Wakeup, error) {
	return wakeup.New()
}
