// Package evh implements the event-driven networking handler: N worker
// threads, each owning one platform multiplexer (epoll/kqueue/IOCP), a
// per-thread connection table, a per-thread read-slab allocator, a shared
// registration/write queue, and user callbacks for accept/read/close/
// housekeeping.
package evh

import "github.com/joeycumines/go-evhcore/corerr"

// Config configures a Handler. NewHandler applies no defaults: every
// field with a "Must be" constraint below has to be set, and a zero value
// there fails Validate. NewHandlerWithOptions starts from defaults for
// ReadSlabSize (4096), ReadSlabCount (64) and HousekeepingFrequencyMs
// (1000).
type Config struct {
	// Threads is the number of worker threads. Must be >= 1.
	Threads int
	// TimeoutMs bounds each worker's platform-wait call so housekeeping
	// is never starved. Must be > 0.
	TimeoutMs int
	// ReadSlabSize is the per-slab payload size for each worker's
	// dedicated read-slab allocator. Must be >= 25 (enough for the
	// trailing 4-byte chain pointer plus a useful read chunk).
	ReadSlabSize int
	// ReadSlabCount is the slab count for each worker's read-slab
	// allocator. Must be > 0.
	ReadSlabCount int
	// HousekeepingFrequencyMs is the minimum interval between
	// on-housekeeper callback invocations. Must be > 0.
	HousekeepingFrequencyMs int
	// StatsUpdateFrequencyMs is the minimum interval between stats
	// aggregation passes. Zero disables periodic aggregation (stats are
	// still available via WaitForStats).
	StatsUpdateFrequencyMs int
	// Debug enables verbose structured logging of the worker loop.
	Debug bool
}

const minReadSlabSize = 25

// Validate checks Config against §4.8.1's recognized-option constraints,
// returning a Configuration error naming the first violation found.
func (c Config) Validate() error {
	if c.Threads < 1 {
		return corerr.New(corerr.Configuration, "threads must be >= 1, got %d", c.Threads)
	}
	if c.TimeoutMs <= 0 {
		return corerr.New(corerr.Configuration, "timeout_ms must be > 0, got %d", c.TimeoutMs)
	}
	if c.ReadSlabSize < minReadSlabSize {
		return corerr.New(corerr.Configuration, "read_slab_size must be >= %d, got %d", minReadSlabSize, c.ReadSlabSize)
	}
	if c.ReadSlabCount <= 0 {
		return corerr.New(corerr.Configuration, "read_slab_count must be > 0, got %d", c.ReadSlabCount)
	}
	if c.HousekeepingFrequencyMs <= 0 {
		return corerr.New(corerr.Configuration, "housekeeping_frequency_ms must be > 0, got %d", c.HousekeepingFrequencyMs)
	}
	return nil
}
