// Package container implements the slab-backed container types: Array,
// Queue, Stack, ArrayList, SortableList, Hashtable, and Hashset. Every
// container holds only slab ids, never raw pointers into the slab buffer;
// the slab.Allocator remains the single source of truth for the
// underlying storage (see package slab).
package container

import "github.com/joeycumines/go-evhcore/slab"

// Config selects the allocator backing a container.
type Config struct {
	// Allocator is the slab allocator the container allocates chains from.
	// If nil, the container uses the process-wide slab.Global() allocator.
	// Containers that will be shared across goroutines must supply their
	// own Allocator here rather than relying on the global one (see
	// slab.Global's doc comment).
	Allocator *slab.Allocator
}

func (c Config) resolve() *slab.Allocator {
	if c.Allocator != nil {
		return c.Allocator
	}
	return slab.Global()
}
