package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies wall time to the session. Production uses SystemClock;
// the harness drives a manual clock so retention windows replay exactly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sequence is a monotonic counter stamping every handled event.
//
// Safe for concurrent use, although only the loop goroutine calls Next.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence starts at 0; the first Next returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the sequence number.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last issued number without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
