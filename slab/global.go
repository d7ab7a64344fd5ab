package slab

import (
	"sync"

	"github.com/joeycumines/go-evhcore/corerr"
)

// globalOnce stands in for the "process-wide thread-local" allocator of
// the original implementation. Go has no first-class thread-local storage,
// and goroutines are not OS threads, so the nearest faithful analogue is a
// single shared instance, initialized exactly once via sync.Once (with
// DefaultConfig on first use unless ConfigureGlobal ran first); no lock
// guards access to the allocator afterwards -- the behavior the spec describes ("lazy-on-
// use with defaults unless explicitly configured"). Containers wanting to
// share state across goroutines safely must embed their own Allocator
// instead (see container.Config.Allocator); this one is NOT safe for
// concurrent sync containers to opt into, matching the "forbidden to Sync
// containers" rule.
var globalOnce struct {
	sync.Once
	alloc *Allocator
}

// Global returns the process-wide allocator, initializing it with
// DefaultConfig on first use if it has not already been configured via
// ConfigureGlobal.
func Global() *Allocator {
	globalOnce.Do(func() {
		globalOnce.alloc = New()
		_ = globalOnce.alloc.Init(DefaultConfig())
	})
	return globalOnce.alloc
}

// ConfigureGlobal initializes the process-wide allocator with cfg. It must
// be called before the first call to Global or ConfigureGlobal, or it
// returns IllegalState.
func ConfigureGlobal(cfg Config) error {
	var err error
	first := false
	globalOnce.Do(func() {
		first = true
		globalOnce.alloc = New()
		err = globalOnce.alloc.Init(cfg)
	})
	if !first {
		return corerr.New(corerr.IllegalState, "global slab allocator already initialized")
	}
	return err
}
