package engine

import "sync/atomic"

// Clock is a monotonic logical clock for status-transition ordering.
//
// Every transition the engine records is stamped with a strictly
// increasing seq number from this clock, so the journal reconstructs the
// exact interleaving of a run without wall-clock races.
//
// Thread-safety: safe for concurrent use; workers from the same wavefront
// stamp transitions concurrently.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
