package evh

import "sync/atomic"

// workerStats holds one worker's monotonic counters. Only that worker's
// goroutine ever increments them, so plain fields would suffice, but
// WaitForStats reads them from the caller's goroutine while the worker
// keeps running, so atomics are used for the cross-goroutine read.
type workerStats struct {
	accepts       atomic.Uint64
	closes        atomic.Uint64
	reads         atomic.Uint64
	bytesRead     atomic.Uint64
	delayedWrites atomic.Uint64
	eventLoops    atomic.Uint64
}

func (s *workerStats) snapshot() Stats {
	return Stats{
		Accepts:       s.accepts.Load(),
		Closes:        s.closes.Load(),
		Reads:         s.reads.Load(),
		BytesRead:     s.bytesRead.Load(),
		DelayedWrites: s.delayedWrites.Load(),
		EventLoops:    s.eventLoops.Load(),
	}
}

// Stats is a point-in-time aggregate of every worker's counters.
type Stats struct {
	Accepts       uint64
	Closes        uint64
	Reads         uint64
	BytesRead     uint64
	DelayedWrites uint64
	EventLoops    uint64
}

// add accumulates other into s, used to aggregate per-worker snapshots.
func (s Stats) add(other Stats) Stats {
	return Stats{
		Accepts:       s.Accepts + other.Accepts,
		Closes:        s.Closes + other.Closes,
		Reads:         s.Reads + other.Reads,
		BytesRead:     s.BytesRead + other.BytesRead,
		DelayedWrites: s.DelayedWrites + other.DelayedWrites,
		EventLoops:    s.EventLoops + other.EventLoops,
	}
}
